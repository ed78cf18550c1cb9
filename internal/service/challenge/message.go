package challenge

import "fmt"

// AbortMessage is sent when the candidate skips a coding exercise.
const AbortMessage = "I'd like to skip this coding question and move on to the next part of the interview."

// ComposeSubmission builds the message that hands a finished solution back to
// the interviewer.
func ComposeSubmission(code, language string, timeSpentSeconds int) string {
	return fmt.Sprintf(
		"I've completed the coding challenge. Time spent: %s. Here's my %s solution:\n```%s\n%s\n```\n\nPlease review my solution and provide feedback.",
		FormatTimeSpent(timeSpentSeconds), language, language, code,
	)
}

// FormatTimeSpent renders seconds as "M minute(s) and S second(s)", or just
// the seconds below one minute.
func FormatTimeSpent(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes, secs := seconds/60, seconds%60
	if minutes > 0 {
		return fmt.Sprintf("%d %s and %d %s", minutes, plural(minutes, "minute"), secs, plural(secs, "second"))
	}
	return fmt.Sprintf("%d %s", secs, plural(secs, "second"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}
