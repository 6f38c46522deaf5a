package llm

import (
	"context"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "const a = 1\n", "const a = 1\n"},
		{"fenced with language", "```ts\nconst a = 1\n```", "const a = 1"},
		{"fenced without language", "```\nx()\ny()\n```\n", "x()\ny()"},
		{"leading whitespace", "  \n```typescript\nfoo\n```  ", "foo"},
		{"unclosed fence", "```ts\nfoo\n", "foo"},
		{"directive survives", "```\n// exit nothing to do\n```", "// exit nothing to do"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpenAIRole(t *testing.T) {
	if got := openaiRole(RoleAssistant); got != "assistant" {
		t.Errorf("assistant role = %q", got)
	}
	if got := openaiRole(RoleSystem); got != "system" {
		t.Errorf("system role = %q", got)
	}
	if got := openaiRole(Role("other")); got != "user" {
		t.Errorf("fallback role = %q", got)
	}
}

func TestNewClients_NilLogger(t *testing.T) {
	if c := NewOpenAIClient("key", "", nil); c.logger == nil {
		t.Error("openai client kept a nil logger")
	}
	c, err := NewGeminiClient(context.Background(), "key", nil)
	if err != nil {
		t.Fatalf("NewGeminiClient: %v", err)
	}
	if c.logger == nil {
		t.Error("gemini client kept a nil logger")
	}
}
