package aisvc

import "context"

const tutorSystemPrompt = "You are a patient school tutor. Answer the student's " +
	"questions step by step, ask guiding questions instead of giving away full " +
	"solutions, and keep answers short enough for a chat window."

// Tutor turns a conversation history into the tutor's next utterance.
type Tutor struct {
	completer Completer
}

func NewTutor(completer Completer) *Tutor {
	return &Tutor{completer: completer}
}

// Reply completes the conversation. History must alternate user/assistant
// turns and end with the student's latest message.
func (t *Tutor) Reply(ctx context.Context, history []Message) (string, error) {
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: RoleSystem, Content: tutorSystemPrompt})
	messages = append(messages, history...)
	return t.completer.Complete(ctx, messages)
}
