// Package llm is the completion client: it answers a question given the full
// document text as context.
package llm

import (
	"context"
	"errors"
)

// SystemPrompt is the fixed instruction sent ahead of every question.
const SystemPrompt = "You are a helpful assistant. Answer using the provided document context."

var (
	// ErrTimeout is returned when the completion API does not answer in time.
	ErrTimeout = errors.New("completion timed out")
	// ErrEmptyResponse is returned when the API answers without any choice.
	ErrEmptyResponse = errors.New("no response generated")
)

// Completer answers question using docContext.
type Completer interface {
	Complete(ctx context.Context, question, docContext string) (string, error)
}

// UserPrompt embeds the document text ahead of the question.
func UserPrompt(question, docContext string) string {
	return "Context:\n" + docContext + "\n\nQuestion: " + question
}

// ErrorText renders err the way failures are shown to users as an answer.
func ErrorText(err error) string {
	return "Error: " + err.Error()
}
