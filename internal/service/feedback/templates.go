package feedback

import (
	"fmt"
	"time"

	"interview-session-service/internal/models"
)

// FallbackSummary is the executive summary of the report returned when
// generation fails.
const FallbackSummary = "Feedback generation failed due to a technical issue. Please review the transcript manually."

var tooShortSkillFeedback = map[string]string{
	models.SkillTechnicalKnowledge: "Insufficient data: the session was too short to assess technical capabilities.",
	models.SkillCommunication:      "Insufficient data: limited interaction time prevents assessing communication.",
	models.SkillProblemSolving:     "Insufficient data: no problem-solving scenario was completed.",
	models.SkillCulturalFit:        "Insufficient data: not enough conversation to judge team and culture fit.",
}

// TooShortReport is the fixed report for interviews below the minimum length.
func TooShortReport(role string, a Analysis, th Thresholds, now time.Time) models.FeedbackReport {
	if role == "" {
		role = "the target"
	}
	skills := make([]models.SkillScore, 0, len(models.OverallSkillNames))
	for _, name := range models.OverallSkillNames {
		skills = append(skills, models.SkillScore{Name: name, Score: 0, Feedback: tooShortSkillFeedback[name]})
	}
	return models.FeedbackReport{
		ExecutiveSummary: fmt.Sprintf(
			"This interview session was too brief (%d exchanges) to provide a comprehensive assessment for the %s position. "+
				"A meaningful interview needs at least %d substantial exchanges. Schedule a longer session to get useful insight "+
				"into your skills and problem-solving approach.",
			a.TotalTurns, role, th.MinimumTurns),
		Strengths: []string{
			"Showed up and engaged with the interview process",
			"Demonstrated willingness to take part in an assessment",
		},
		Improvements: []string{
			"Complete a full-length interview session for a comprehensive evaluation",
			"Prepare for longer technical discussions to showcase your abilities",
			"Practice with mock interviews to build confidence",
		},
		OverallSkills:   skills,
		TechnicalSkills: []models.SkillScore{},
		ActionPlan: []string{
			"Schedule a complete interview session lasting at least 15-20 minutes",
			"Prepare to engage with several technical questions and scenarios",
			"Practice explaining your thought process out loud",
			"Review common interview questions for your target position",
		},
		GeneratedAt: &now,
	}
}

// FallbackReport is returned whenever generation or validation fails.
func FallbackReport(now time.Time) models.FeedbackReport {
	skills := make([]models.SkillScore, 0, len(models.OverallSkillNames))
	for _, name := range models.OverallSkillNames {
		skills = append(skills, models.SkillScore{Name: name, Score: 0, Feedback: "Analysis failed"})
	}
	return models.FeedbackReport{
		ExecutiveSummary: FallbackSummary,
		Strengths:        []string{"Unable to analyze strengths"},
		Improvements:     []string{"Unable to analyze improvements"},
		OverallSkills:    skills,
		TechnicalSkills:  []models.SkillScore{},
		ActionPlan:       []string{"Please try again later"},
		GeneratedAt:      &now,
	}
}

// IsFallback reports whether r is a fallback report.
func IsFallback(r models.FeedbackReport) bool {
	return r.ExecutiveSummary == FallbackSummary
}
