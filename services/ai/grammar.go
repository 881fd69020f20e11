package aisvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const grammarSystemPrompt = "You are a grammar checker. Reply with JSON only, " +
	"no prose and no code fences, in the shape " +
	`{"corrected": "...", "corrections": [{"original": "...", "replacement": "...", "explanation": "...", "offset": 0}]}. ` +
	"Offsets are character positions into the original text. If the text is " +
	"already correct, return it unchanged with an empty corrections list."

// Correction is a single grammar fix. Offset and Length are character
// (rune) positions into the original text.
type Correction struct {
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Explanation string `json:"explanation,omitempty"`
}

// GrammarResult is the checked text with its corrections.
type GrammarResult struct {
	Corrected   string       `json:"corrected"`
	Corrections []Correction `json:"corrections"`
}

// GrammarChecker asks the model for corrections and repairs their offsets
// locally; models routinely omit or misreport positions.
type GrammarChecker struct {
	completer Completer
}

func NewGrammarChecker(completer Completer) *GrammarChecker {
	return &GrammarChecker{completer: completer}
}

type modelCorrection struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Explanation string `json:"explanation"`
	Offset      *int   `json:"offset"`
}

type modelGrammarResult struct {
	Corrected   string            `json:"corrected"`
	Corrections []modelCorrection `json:"corrections"`
}

func (g *GrammarChecker) Check(ctx context.Context, text string) (GrammarResult, error) {
	raw, err := g.completer.Complete(ctx, []Message{
		{Role: RoleSystem, Content: grammarSystemPrompt},
		{Role: RoleUser, Content: text},
	})
	if err != nil {
		return GrammarResult{}, err
	}

	var parsed modelGrammarResult
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &parsed); err != nil {
		return GrammarResult{}, fmt.Errorf("unmarshal grammar response: %w", err)
	}
	if parsed.Corrected == "" {
		parsed.Corrected = text
	}

	res := GrammarResult{Corrected: parsed.Corrected, Corrections: make([]Correction, 0, len(parsed.Corrections))}

	runes := []rune(text)
	searchFrom := 0
	for _, mc := range parsed.Corrections {
		if mc.Original == "" {
			continue
		}
		offset, ok := locate(runes, mc.Original, mc.Offset, searchFrom)
		if !ok {
			// the model's list does not line up with the text; rebuild it
			res.Corrections = diffCorrections(text, parsed.Corrected)
			return res, nil
		}
		origLen := len([]rune(mc.Original))
		res.Corrections = append(res.Corrections, Correction{
			Offset:      offset,
			Length:      origLen,
			Original:    mc.Original,
			Replacement: mc.Replacement,
			Explanation: mc.Explanation,
		})
		searchFrom = offset + origLen
	}

	if len(res.Corrections) == 0 && parsed.Corrected != text {
		res.Corrections = diffCorrections(text, parsed.Corrected)
	}
	return res, nil
}

// locate verifies a reported offset against the text, falling back to a
// scan from the previous correction onward.
func locate(runes []rune, original string, reported *int, searchFrom int) (int, bool) {
	orig := []rune(original)
	matchesAt := func(off int) bool {
		if off < 0 || off+len(orig) > len(runes) {
			return false
		}
		return string(runes[off:off+len(orig)]) == original
	}

	if reported != nil && matchesAt(*reported) {
		return *reported, true
	}
	for off := searchFrom; off+len(orig) <= len(runes); off++ {
		if matchesAt(off) {
			return off, true
		}
	}
	return 0, false
}

// diffCorrections derives the correction list from the original and the
// corrected text. Explanations are lost; positions are exact.
func diffCorrections(text, corrected string) []Correction {
	a := splitRunes(text)
	b := splitRunes(corrected)

	var corrections []Correction
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		corrections = append(corrections, Correction{
			Offset:      op.I1,
			Length:      op.I2 - op.I1,
			Original:    strings.Join(a[op.I1:op.I2], ""),
			Replacement: strings.Join(b[op.J1:op.J2], ""),
		})
	}
	return corrections
}

func splitRunes(s string) []string {
	runes := []rune(s)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
