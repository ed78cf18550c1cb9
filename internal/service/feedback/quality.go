package feedback

import (
	"strings"

	"interview-session-service/internal/models"
)

var genericPhrases = []string{"good", "great", "excellent", "needs improvement", "could be better"}

var limitationPhrases = []string{"limited", "brief", "short", "insufficient", "few questions"}

// QualityScore rates how specific and complete a report is, 0..100. The
// expectations grow with interview length.
func QualityScore(r models.FeedbackReport, c Category) int {
	score := 100
	summary := r.ExecutiveSummary

	switch c {
	case CategoryShort:
		score -= penalty(len(summary) < 50, 15)
		score -= penalty(len(r.Strengths) < 2, 10)
		score -= penalty(len(r.Improvements) < 2, 10)
		score -= penalty(len(r.ActionPlan) < 2, 10)
		if averageScore(r.OverallSkills) > 75 {
			score -= 20
		}
		if containsAny(strings.ToLower(summary), limitationPhrases) {
			score += 15
		}
	case CategoryMedium:
		score -= penalty(len(summary) < 100, 8)
		score -= penalty(len(r.Strengths) < 3, 8)
		score -= penalty(len(r.Improvements) < 3, 8)
		score -= penalty(len(r.ActionPlan) < 3, 8)
	case CategoryLong:
		score -= penalty(len(summary) < 150, 10)
		score -= penalty(len(r.Strengths) < 4, 10)
		score -= penalty(len(r.Improvements) < 4, 10)
		score -= penalty(len(r.ActionPlan) < 4, 10)
		if allFeedbackLonger(r.OverallSkills, 80) {
			score += 15
		}
	}

	parts := []string{summary}
	parts = append(parts, r.Strengths...)
	parts = append(parts, r.Improvements...)
	for _, s := range r.OverallSkills {
		parts = append(parts, s.Feedback)
	}
	parts = append(parts, r.ActionPlan...)
	all := strings.ToLower(strings.Join(parts, " "))

	generic := 0
	for _, p := range genericPhrases {
		if strings.Contains(all, p) {
			generic++
		}
	}
	per := 5
	if c == CategoryShort {
		per = 3
	}
	score -= min(generic*per, 20)

	if len(summary) > 200 {
		score += 5
	}
	minFeedback := 50
	if c == CategoryShort {
		minFeedback = 30
	}
	if allFeedbackLonger(r.OverallSkills, minFeedback) {
		score += 10
	}
	return max(0, min(100, score))
}

func penalty(cond bool, points int) int {
	if cond {
		return points
	}
	return 0
}

func averageScore(skills []models.SkillScore) float64 {
	if len(skills) == 0 {
		return 0
	}
	sum := 0
	for _, s := range skills {
		sum += s.Score
	}
	return float64(sum) / float64(len(skills))
}

func allFeedbackLonger(skills []models.SkillScore, n int) bool {
	if len(skills) == 0 {
		return false
	}
	for _, s := range skills {
		if len(s.Feedback) <= n {
			return false
		}
	}
	return true
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
