package testrunner

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultOutputLimit caps how much runner output is kept for prompts.
const DefaultOutputLimit = 8000

// TailOutput keeps the last limit bytes of s; failure summaries sit at the end.
func TailOutput(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return "…(truncated)\n" + s[len(s)-limit:]
}

// Counts are the totals from vitest's "Tests" summary line.
type Counts struct {
	Found   bool `json:"found"`
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
}

var (
	ansiRe    = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	testsRe   = regexp.MustCompile(`(?m)^\s*Tests\s+(.+?)\s*\((\d+)\)\s*$`)
	countPart = regexp.MustCompile(`(\d+)\s+(passed|failed|skipped|todo)`)
)

// ParseSummary reads the "Tests  1 failed | 2 passed (3)" line from vitest's
// default reporter.
func ParseSummary(output string) Counts {
	m := testsRe.FindStringSubmatch(ansiRe.ReplaceAllString(output, ""))
	if m == nil {
		return Counts{}
	}
	c := Counts{Found: true}
	c.Total, _ = strconv.Atoi(m[2])
	for _, part := range countPart.FindAllStringSubmatch(m[1], -1) {
		n, _ := strconv.Atoi(part[1])
		switch part[2] {
		case "passed":
			c.Passed = n
		case "failed":
			c.Failed = n
		case "skipped", "todo":
			c.Skipped += n
		}
	}
	return c
}

// Describe renders a one-line summary.
func (c Counts) Describe(exitCode int) string {
	if !c.Found {
		if exitCode == 0 {
			return "passed (exit code 0)"
		}
		return fmt.Sprintf("exit code %d", exitCode)
	}
	parts := []string{
		fmt.Sprintf("%d passed", c.Passed),
		fmt.Sprintf("%d failed", c.Failed),
		fmt.Sprintf("%d skipped", c.Skipped),
	}
	return strings.Join(parts, ", ") + fmt.Sprintf(" out of %d", c.Total)
}
