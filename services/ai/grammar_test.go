package aisvc

import (
	"context"
	"testing"
)

type completerStub struct {
	reply    string
	err      error
	messages []Message
}

func (c *completerStub) Complete(_ context.Context, messages []Message) (string, error) {
	c.messages = messages
	return c.reply, c.err
}

func TestGrammarCheckValidOffsets(t *testing.T) {
	stub := &completerStub{reply: `{"corrected": "He goes home.", "corrections": [{"original": "go", "replacement": "goes", "explanation": "third person singular", "offset": 3}]}`}
	g := NewGrammarChecker(stub)

	res, err := g.Check(context.Background(), "He go home.")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Corrected != "He goes home." {
		t.Errorf("Corrected = %q", res.Corrected)
	}
	if len(res.Corrections) != 1 {
		t.Fatalf("len(Corrections) = %d, want 1", len(res.Corrections))
	}
	c := res.Corrections[0]
	if c.Offset != 3 || c.Length != 2 || c.Replacement != "goes" || c.Explanation != "third person singular" {
		t.Errorf("got correction %+v", c)
	}
}

func TestGrammarCheckMisreportedOffset(t *testing.T) {
	// model claims offset 7; "go" actually sits at 3
	stub := &completerStub{reply: `{"corrected": "He goes home.", "corrections": [{"original": "go", "replacement": "goes", "offset": 7}]}`}
	g := NewGrammarChecker(stub)

	res, err := g.Check(context.Background(), "He go home.")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(res.Corrections) != 1 {
		t.Fatalf("len(Corrections) = %d, want 1", len(res.Corrections))
	}
	if res.Corrections[0].Offset != 3 {
		t.Errorf("Offset = %d, want 3", res.Corrections[0].Offset)
	}
}

func TestGrammarCheckOmittedOffsets(t *testing.T) {
	stub := &completerStub{reply: `{"corrected": "She does not know.", "corrections": [{"original": "dont", "replacement": "does not"}]}`}
	g := NewGrammarChecker(stub)

	res, err := g.Check(context.Background(), "She dont know.")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(res.Corrections) != 1 {
		t.Fatalf("len(Corrections) = %d, want 1", len(res.Corrections))
	}
	if res.Corrections[0].Offset != 4 || res.Corrections[0].Length != 4 {
		t.Errorf("got correction %+v", res.Corrections[0])
	}
}

func TestGrammarCheckDiffFallback(t *testing.T) {
	// model returns corrected text but no usable corrections list
	stub := &completerStub{reply: `{"corrected": "He goes home.", "corrections": []}`}
	g := NewGrammarChecker(stub)

	res, err := g.Check(context.Background(), "He go home.")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(res.Corrections) == 0 {
		t.Fatal("no corrections derived from diff")
	}
	// applying the corrections in reverse must yield the corrected text
	got := []rune("He go home.")
	for i := len(res.Corrections) - 1; i >= 0; i-- {
		c := res.Corrections[i]
		got = append(got[:c.Offset], append([]rune(c.Replacement), got[c.Offset+c.Length:]...)...)
	}
	if string(got) != "He goes home." {
		t.Errorf("applying corrections yields %q", string(got))
	}
}

func TestGrammarCheckFencedJSON(t *testing.T) {
	stub := &completerStub{reply: "```json\n{\"corrected\": \"Fine.\", \"corrections\": []}\n```"}
	g := NewGrammarChecker(stub)

	res, err := g.Check(context.Background(), "Fine.")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if res.Corrected != "Fine." || len(res.Corrections) != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestTutorPrependsSystemPrompt(t *testing.T) {
	stub := &completerStub{reply: "Let's break it down."}
	tutor := NewTutor(stub)

	history := []Message{{Role: RoleUser, Content: "What is a derivative?"}}
	reply, err := tutor.Reply(context.Background(), history)
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if reply != "Let's break it down." {
		t.Errorf("reply = %q", reply)
	}
	if len(stub.messages) != 2 || stub.messages[0].Role != RoleSystem {
		t.Errorf("got messages %+v", stub.messages)
	}
}
