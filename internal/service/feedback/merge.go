package feedback

import (
	"bytes"
	"encoding/json"
	"time"

	"interview-session-service/internal/models"
)

// Merge reconciles two copies of a report, typically the persisted one and
// the locally cached instant one. The copy with the later generatedAt wins and
// a missing timestamp counts as zero. The loser only ever contributes its
// generatedAt, and only when the winner has none. Equal timestamps are broken
// on content so Merge(a, b) and Merge(b, a) agree.
func Merge(a, b *models.FeedbackReport) *models.FeedbackReport {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return clone(b)
	case b == nil:
		return clone(a)
	}

	winner, loser := a, b
	ta, tb := generatedAt(a), generatedAt(b)
	if tb.After(ta) || (tb.Equal(ta) && contentAfter(b, a)) {
		winner, loser = b, a
	}

	out := clone(winner)
	if out.GeneratedAt == nil && loser.GeneratedAt != nil {
		t := *loser.GeneratedAt
		out.GeneratedAt = &t
	}
	return out
}

func generatedAt(r *models.FeedbackReport) time.Time {
	if r.GeneratedAt == nil {
		return time.Time{}
	}
	return *r.GeneratedAt
}

// contentAfter orders reports by their canonical JSON encoding.
func contentAfter(x, y *models.FeedbackReport) bool {
	bx, _ := json.Marshal(x)
	by, _ := json.Marshal(y)
	return bytes.Compare(bx, by) > 0
}

func clone(r *models.FeedbackReport) *models.FeedbackReport {
	out := *r
	out.Strengths = append([]string(nil), r.Strengths...)
	out.Improvements = append([]string(nil), r.Improvements...)
	out.OverallSkills = append([]models.SkillScore(nil), r.OverallSkills...)
	out.TechnicalSkills = append([]models.SkillScore(nil), r.TechnicalSkills...)
	out.ActionPlan = append([]string(nil), r.ActionPlan...)
	if r.Comparisons != nil {
		out.Comparisons = append([]models.Comparison(nil), r.Comparisons...)
	}
	if r.GeneratedAt != nil {
		t := *r.GeneratedAt
		out.GeneratedAt = &t
	}
	return &out
}
