package isolate

import "strings"

const (
	modeCode = iota
	modeTemplate
)

// span is a half-open byte range of src.
type span struct{ start, end int }

// matchBrace returns the index of the '}' that closes the '{' at open, or -1
// if nesting never returns to zero before the end of src. String literals,
// template literals (including ${} substitutions) and comments are skipped,
// as are the skip ranges, which must be sorted by start.
func matchBrace(src string, open int, skip ...span) int {
	depth := 0
	modes := []int{modeCode}
	var subst []int

	for i := open; i < len(src); i++ {
		for len(skip) > 0 && skip[0].end <= i {
			skip = skip[1:]
		}
		if len(skip) > 0 && skip[0].start == i && modes[len(modes)-1] == modeCode {
			i = skip[0].end - 1
			skip = skip[1:]
			continue
		}
		c := src[i]

		if modes[len(modes)-1] == modeTemplate {
			switch {
			case c == '\\':
				i++
			case c == '`':
				modes = modes[:len(modes)-1]
			case c == '$' && i+1 < len(src) && src[i+1] == '{':
				i++
				subst = append(subst, depth)
				modes = append(modes, modeCode)
			}
			continue
		}

		switch c {
		case '\'', '"':
			i = skipQuoted(src, i)
		case '`':
			modes = append(modes, modeTemplate)
		case '/':
			if i+1 >= len(src) {
				continue
			}
			switch src[i+1] {
			case '/':
				nl := strings.IndexByte(src[i:], '\n')
				if nl < 0 {
					return -1
				}
				i += nl
			case '*':
				end := strings.Index(src[i+2:], "*/")
				if end < 0 {
					return -1
				}
				i += end + 3
			}
		case '{':
			depth++
		case '}':
			if n := len(subst); n > 0 && subst[n-1] == depth {
				subst = subst[:n-1]
				modes = modes[:len(modes)-1]
				continue
			}
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipQuoted returns the index of the quote closing the literal at i. An
// unterminated literal ends at the next newline.
func skipQuoted(src string, i int) int {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case quote, '\n':
			return j
		}
	}
	return len(src)
}
