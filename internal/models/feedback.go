package models

import (
	"strings"
	"time"
)

// The four fixed overall skill dimensions, in report order.
const (
	SkillTechnicalKnowledge = "Technical Knowledge"
	SkillCommunication      = "Communication"
	SkillProblemSolving     = "Problem Solving"
	SkillCulturalFit        = "Cultural Fit"
)

// OverallSkillNames lists the overall dimensions every report carries.
var OverallSkillNames = []string{
	SkillTechnicalKnowledge,
	SkillCommunication,
	SkillProblemSolving,
	SkillCulturalFit,
}

// SkillScore is a scored dimension with narrative feedback.
type SkillScore struct {
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Comparison contrasts a candidate answer with an ideal one.
type Comparison struct {
	Question     string `json:"question"`
	ActualAnswer string `json:"actualAnswer"`
	IdealAnswer  string `json:"idealAnswer"`
	Explanation  string `json:"explanation"`
}

// FeedbackReport is the structured result of the feedback pipeline.
type FeedbackReport struct {
	ExecutiveSummary string       `json:"executiveSummary"`
	Strengths        []string     `json:"strengths"`
	Improvements     []string     `json:"improvements"`
	OverallSkills    []SkillScore `json:"skills"`
	TechnicalSkills  []SkillScore `json:"technicalSkills"`
	ActionPlan       []string     `json:"actionPlan"`
	Comparisons      []Comparison `json:"comparisons,omitempty"`
	GeneratedAt      *time.Time   `json:"generatedAt,omitempty"`
}

// AverageScore is the rounded mean of the overall skill scores.
func (r FeedbackReport) AverageScore() int {
	if len(r.OverallSkills) == 0 {
		return 0
	}
	sum := 0
	for _, s := range r.OverallSkills {
		sum += s.Score
	}
	n := len(r.OverallSkills)
	return (sum*2 + n) / (2 * n)
}

// Normalize fills absent collections so that no field is ever missing.
func (r *FeedbackReport) Normalize() {
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Improvements == nil {
		r.Improvements = []string{}
	}
	if r.OverallSkills == nil {
		r.OverallSkills = []SkillScore{}
	}
	if r.TechnicalSkills == nil {
		r.TechnicalSkills = []SkillScore{}
	}
	if r.ActionPlan == nil {
		r.ActionPlan = []string{}
	}
}

// GeneratedAtMillis returns generatedAt in epoch milliseconds, zero when unset.
func (r FeedbackReport) GeneratedAtMillis() int64 {
	if r.GeneratedAt == nil {
		return 0
	}
	return r.GeneratedAt.UnixMilli()
}

// HasOverallSkill reports whether a dimension with the given name is present.
func (r FeedbackReport) HasOverallSkill(name string) bool {
	for _, s := range r.OverallSkills {
		if strings.EqualFold(s.Name, name) {
			return true
		}
	}
	return false
}

// FeedbackEvent is published when a report is produced.
type FeedbackEvent struct {
	EventType    string         `json:"eventType"`
	SessionID    string         `json:"sessionId"`
	Category     string         `json:"category"`
	Fallback     bool           `json:"fallback"`
	QualityScore int            `json:"qualityScore"`
	Report       FeedbackReport `json:"report"`
	Timestamp    int64          `json:"timestamp"`
}
