package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// emphasisPattern matches **bold** spans together with trailing whitespace.
var emphasisPattern = regexp.MustCompile(`\*\*[^*]+\*\*\s*`)

// Clean removes markup and non-spoken annotations from text.
//
// Bold spans are stripped outright. Lines whose trimmed form starts with '*' or
// '(' are stage directions rather than speech and are dropped, as are blank
// lines. Clean is idempotent.
func Clean(text string) string {
	stripped := emphasisPattern.ReplaceAllString(text, "")
	stripped = strings.ReplaceAll(stripped, "**", "")

	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "*") || strings.HasPrefix(trimmed, "(") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// CleanFragment cleans a streamed chunk but keeps a single space where the
// raw chunk began or ended with whitespace, so chunks that split a word or
// carry their own separators concatenate back into the original text. It
// returns "" when nothing spoken remains.
func CleanFragment(text string) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return ""
	}
	if r, _ := utf8.DecodeRuneInString(text); unicode.IsSpace(r) {
		cleaned = " " + cleaned
	}
	if r, _ := utf8.DecodeLastRuneInString(text); unicode.IsSpace(r) {
		cleaned += " "
	}
	return cleaned
}

// WordCount returns the number of whitespace-delimited tokens in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
