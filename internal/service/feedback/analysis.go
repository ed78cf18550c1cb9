// Package feedback turns a finished interview transcript into a scored report.
package feedback

import (
	"interview-session-service/internal/models"
	"interview-session-service/internal/service/transcript"
)

// Category is the length tier of an interview.
type Category string

const (
	CategoryTooShort Category = "too-short"
	CategoryShort    Category = "short"
	CategoryMedium   Category = "medium"
	CategoryLong     Category = "long"
)

// Thresholds are entry counts separating the length tiers.
type Thresholds struct {
	MinimumTurns    int
	ShortInterview  int
	MediumInterview int
	LongInterview   int
}

// DefaultThresholds returns 4/8/15/25.
func DefaultThresholds() Thresholds {
	return Thresholds{MinimumTurns: 4, ShortInterview: 8, MediumInterview: 15, LongInterview: 25}
}

// Analysis summarises transcript length.
type Analysis struct {
	TotalTurns int
	UserTurns  int
	AITurns    int
	// AvgUserResponseLength is the mean candidate entry length in characters.
	AvgUserResponseLength float64
	TotalWords            int
	Category              Category
}

// Analyze counts turns and words and classifies the transcript.
func Analyze(entries []models.TranscriptEntry, th Thresholds) Analysis {
	a := Analysis{TotalTurns: len(entries)}
	userChars := 0
	for _, e := range entries {
		switch e.Speaker {
		case models.SpeakerUser:
			a.UserTurns++
			userChars += len(e.Text)
		case models.SpeakerAI:
			a.AITurns++
		}
		a.TotalWords += transcript.WordCount(e.Text)
	}
	if a.UserTurns > 0 {
		a.AvgUserResponseLength = float64(userChars) / float64(a.UserTurns)
	}
	a.Category = th.Classify(a.TotalTurns)
	return a
}

// Classify maps an entry count onto a category.
func (th Thresholds) Classify(turns int) Category {
	switch {
	case turns < th.MinimumTurns:
		return CategoryTooShort
	case turns < th.ShortInterview:
		return CategoryShort
	case turns < th.MediumInterview:
		return CategoryMedium
	default:
		return CategoryLong
	}
}
