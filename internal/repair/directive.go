package repair

import (
	"regexp"
	"strings"

	"github.com/lucasnoah/vitestgpt/internal/llm"
)

// Kind is the directive a model reply opens with.
type Kind int

const (
	Unrecognized Kind = iota
	FixUnitTest
	FixSourceCode
	Exit
)

func (k Kind) String() string {
	switch k {
	case FixUnitTest:
		return "fix-unit-test"
	case FixSourceCode:
		return "fix-source-code"
	case Exit:
		return "exit"
	default:
		return "unrecognized"
	}
}

// Action is a parsed reply: the directive and everything after it.
type Action struct {
	Kind    Kind
	Payload string
}

// The marker must end at a word boundary; one optional colon may follow it.
var directiveRe = regexp.MustCompile(`(?i)^\s*//\s*(fix-unit-test|fix-source-code|exit)\b\s*:?\s*`)

// ParseAction reads the leading directive of a reply after removing any
// surrounding code fence. Replies without one of the three markers at the very
// start are Unrecognized.
func ParseAction(reply string) Action {
	text := llm.StripCodeFence(reply)
	loc := directiveRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Action{Kind: Unrecognized}
	}
	payload := text[loc[1]:]

	switch strings.ToLower(text[loc[2]:loc[3]]) {
	case "fix-unit-test":
		return Action{Kind: FixUnitTest, Payload: llm.StripCodeFence(payload)}
	case "fix-source-code":
		return Action{Kind: FixSourceCode, Payload: llm.StripCodeFence(payload)}
	default:
		return Action{Kind: Exit, Payload: strings.TrimSpace(payload)}
	}
}
