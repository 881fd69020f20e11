// Package speechsvc synthesizes text to speech through an OpenAI-compatible
// audio endpoint and memoizes the generated audio per utterance.
package speechsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/recedu/reconline/core"
)

// Synthesizer turns text into spoken audio.
type Synthesizer interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

type synthesizer struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
	voice   string
}

type speechRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// NewSynthesizer builds a Synthesizer from the AI section of the config.
func NewSynthesizer(conf *core.Config) Synthesizer {
	return &synthesizer{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: strings.TrimSuffix(conf.AI.BaseURL, "/"),
		apiKey:  conf.AI.APIKey,
		model:   conf.AI.TTSModel,
		voice:   conf.AI.TTSVoice,
	}
}

func (s *synthesizer) Speak(ctx context.Context, text string) ([]byte, error) {
	jsonBody, err := json.Marshal(speechRequest{Model: s.model, Voice: s.voice, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/audio/speech", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error: %d - %s", resp.StatusCode, string(body))
	}
	return body, nil
}
