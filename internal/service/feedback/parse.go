package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"interview-session-service/internal/models"
	"interview-session-service/internal/schema"
)

// ErrInvalidReport wraps every structural or semantic problem with model
// output.
var ErrInvalidReport = errors.New("invalid feedback report")

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\\n?(.*?)\\n?```$")

// StripFences removes a surrounding markdown code fence.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

type wireSkill struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

type wireReport struct {
	ExecutiveSummary string              `json:"executiveSummary"`
	Strengths        []string            `json:"strengths"`
	Improvements     []string            `json:"improvements"`
	Skills           []wireSkill         `json:"skills"`
	TechnicalSkills  []wireSkill         `json:"technicalSkills"`
	ActionPlan       []string            `json:"actionPlan"`
	Comparisons      []models.Comparison `json:"comparisons"`
}

// Parser decodes and validates model output.
type Parser struct {
	validator *schema.Validator
}

// NewParser creates a parser using v for structural checks.
func NewParser(v *schema.Validator) *Parser {
	return &Parser{validator: v}
}

// Parse strips fences, validates the document against the feedback schema and
// checks that the overall dimensions are exactly the four fixed ones.
func (p *Parser) Parse(text string) (models.FeedbackReport, error) {
	body := StripFences(text)
	if body == "" {
		return models.FeedbackReport{}, fmt.Errorf("%w: empty response", ErrInvalidReport)
	}
	if err := p.validator.ValidateJSON([]byte(body)); err != nil {
		return models.FeedbackReport{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}

	var wire wireReport
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return models.FeedbackReport{}, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if err := checkDimensions(wire.Skills); err != nil {
		return models.FeedbackReport{}, err
	}
	if dup := duplicateName(wire.TechnicalSkills); dup != "" {
		return models.FeedbackReport{}, fmt.Errorf("%w: duplicate technical skill %q", ErrInvalidReport, dup)
	}

	report := models.FeedbackReport{
		ExecutiveSummary: strings.TrimSpace(wire.ExecutiveSummary),
		Strengths:        wire.Strengths,
		Improvements:     wire.Improvements,
		OverallSkills:    orderDimensions(convertSkills(wire.Skills)),
		TechnicalSkills:  convertSkills(wire.TechnicalSkills),
		ActionPlan:       wire.ActionPlan,
		Comparisons:      wire.Comparisons,
	}
	report.Normalize()
	return report, nil
}

func checkDimensions(skills []wireSkill) error {
	if dup := duplicateName(skills); dup != "" {
		return fmt.Errorf("%w: duplicate skill %q", ErrInvalidReport, dup)
	}
	if len(skills) != len(models.OverallSkillNames) {
		return fmt.Errorf("%w: expected %d overall skills, got %d", ErrInvalidReport, len(models.OverallSkillNames), len(skills))
	}
	for _, s := range skills {
		if canonicalDimension(s.Name) == "" {
			return fmt.Errorf("%w: unexpected skill %q", ErrInvalidReport, s.Name)
		}
	}
	return nil
}

func duplicateName(skills []wireSkill) string {
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		key := strings.ToLower(strings.TrimSpace(s.Name))
		if seen[key] {
			return s.Name
		}
		seen[key] = true
	}
	return ""
}

func canonicalDimension(name string) string {
	for _, d := range models.OverallSkillNames {
		if strings.EqualFold(strings.TrimSpace(name), d) {
			return d
		}
	}
	return ""
}

func convertSkills(in []wireSkill) []models.SkillScore {
	out := make([]models.SkillScore, 0, len(in))
	for _, s := range in {
		name := strings.TrimSpace(s.Name)
		if d := canonicalDimension(name); d != "" {
			name = d
		}
		out = append(out, models.SkillScore{
			Name:     name,
			Score:    int(math.Round(s.Score)),
			Feedback: strings.TrimSpace(s.Feedback),
		})
	}
	return out
}

// orderDimensions sorts overall skills into report order.
func orderDimensions(skills []models.SkillScore) []models.SkillScore {
	out := make([]models.SkillScore, 0, len(skills))
	for _, d := range models.OverallSkillNames {
		for _, s := range skills {
			if s.Name == d {
				out = append(out, s)
			}
		}
	}
	return out
}
