// Package llm wraps chat-completion providers behind a single Completer.
package llm

import (
	"context"
	"errors"
	"strings"
)

// Role is a conversation participant.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion call.
type Request struct {
	Model    string
	Messages []Message
}

// Completer returns the text of the first choice for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNoChoices is returned when a provider answers without any content.
var ErrNoChoices = errors.New("completion returned no choices")

// StripCodeFence removes a surrounding markdown code fence (``` or ```lang)
// from a model reply. Text without an opening fence is returned unchanged.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return strings.TrimSpace(strings.Trim(trimmed, "`"))
	}
	body := trimmed[nl+1:]
	if strings.HasSuffix(body, "```") {
		body = strings.TrimSuffix(body, "```")
		body = strings.TrimSuffix(body, "\n")
		body = strings.TrimSuffix(body, "\r")
	}
	return body
}
