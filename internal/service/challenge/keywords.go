package challenge

import "strings"

// DefaultKeywords are phrases that usually mean the interviewer is posing a
// coding exercise.
var DefaultKeywords = []string{
	"write a function",
	"implement",
	"write code",
	"code this",
	"solve this problem",
	"algorithm",
	"write a program",
	"create a function",
	"coding challenge",
	"programming problem",
	"leetcode",
	"hackerrank",
}

// ContainsKeyword reports whether text contains any of keywords, ignoring case.
func ContainsKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
