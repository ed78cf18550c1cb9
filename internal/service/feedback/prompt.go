package feedback

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"interview-session-service/internal/models"
	"interview-session-service/internal/service/transcript"
)

//go:embed prompt.tmpl
var promptSource string

var promptTemplate = template.Must(template.New("prompt").Funcs(template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
}).Parse(promptSource))

// Band is one score range of a rubric.
type Band struct {
	Low, High int
	Text      string
}

// Rubric describes how one dimension is scored.
type Rubric struct {
	Name  string
	Bands []Band
}

type promptData struct {
	Role               string
	InterviewType      string
	Employer           string
	JobDescription     string
	Skills             []string
	Difficulty         models.Difficulty
	DifficultyText     string
	Transcript         string
	Analysis           Analysis
	Thresholds         Thresholds
	LengthInstructions string
	Rubrics            []Rubric
	Dimensions         []string
}

// RenderTranscript cleans every entry, drops the ones left empty and renders
// the rest as "SPEAKER: text" lines.
func RenderTranscript(entries []models.TranscriptEntry) string {
	var b strings.Builder
	for _, e := range entries {
		text := transcript.Clean(e.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(e.Speaker)), text)
	}
	return b.String()
}

// BuildPrompt renders the completion prompt for a transcript.
func BuildPrompt(entries []models.TranscriptEntry, sc models.SessionConfig, a Analysis, th Thresholds) (string, error) {
	role := sc.Role
	if role == "" {
		role = "general"
	}
	kind := sc.InterviewType
	if kind == "" {
		kind = "general"
	}
	data := promptData{
		Role:               role,
		InterviewType:      kind,
		Employer:           sc.Employer,
		JobDescription:     strings.TrimSpace(sc.JobDescription),
		Skills:             sc.Skills,
		Difficulty:         sc.Difficulty,
		DifficultyText:     difficultyText(sc.Difficulty),
		Transcript:         RenderTranscript(entries),
		Analysis:           a,
		Thresholds:         th,
		LengthInstructions: lengthInstructions(a.Category),
		Rubrics:            Rubrics(sc.Difficulty),
		Dimensions:         models.OverallSkillNames,
	}
	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}

func difficultyText(d models.Difficulty) string {
	switch d {
	case models.DifficultyBeginner:
		return "This is a beginner-level interview. Focus on fundamental understanding rather than advanced expertise."
	case models.DifficultyIntermediate:
		return "This is an intermediate-level interview. Expect solid foundational knowledge and some practical experience."
	case models.DifficultyAdvanced:
		return "This is an advanced-level interview. Expect deep technical knowledge, complex problem-solving and extensive experience."
	default:
		return ""
	}
}

func lengthInstructions(c Category) string {
	switch c {
	case CategoryShort:
		return `SPECIAL INSTRUCTIONS FOR SHORT INTERVIEW:
- Acknowledge the limited data available for assessment
- Provide general, encouraging feedback
- Be lenient with scoring and avoid very low scores unless clearly warranted
- Focus on what was observed rather than extensive inference`
	case CategoryMedium:
		return `SPECIAL INSTRUCTIONS FOR MEDIUM-LENGTH INTERVIEW:
- Provide a balanced assessment with moderate detail
- Include specific examples where available
- Balance strengths and areas for growth`
	case CategoryLong:
		return `SPECIAL INSTRUCTIONS FOR COMPREHENSIVE INTERVIEW:
- Provide detailed, specific feedback with granular analysis
- Cite examples from different parts of the interview
- Use nuanced scoring that reflects the depth of evidence
- Provide a detailed action plan`
	default:
		return ""
	}
}

// bandFloors are the lower bounds of the rubric bands, best first.
var bandFloors = []int{90, 70, 50, 30, 15, 5, 0}

var rubricText = map[string][]string{
	models.SkillTechnicalKnowledge: {
		"Deep understanding, explains complex concepts with detailed examples and trade-offs",
		"Solid understanding, explains how technologies work with specific use cases",
		"Explains basic concepts beyond naming technologies",
		"Some understanding with significant gaps or confusion",
		"Very limited knowledge, mostly incorrect explanations",
		"Only lists technology names without explanation",
		"No technical knowledge demonstrated",
	},
	models.SkillCommunication: {
		"Crystal clear, professional and well-structured",
		"Clear, minor issues do not affect understanding",
		"Generally understandable with some gaps",
		"Significant barriers, some answers unclear",
		"Frequent issues, difficult to follow",
		"Poor communication, hard to understand",
		"Cannot communicate effectively",
	},
	models.SkillProblemSolving: {
		"Systematic approach, breaks problems down and weighs alternatives",
		"Logical thinking with a structured attempt",
		"Basic approach with some reasoning",
		"Limited attempts, struggles to structure the problem",
		"Minimal effort, shows confusion",
		"Gives up quickly without a real attempt",
		"No problem-solving shown",
	},
	models.SkillCulturalFit: {
		"Collaborative, reflective and clearly aligned with team values",
		"Positive attitude with good examples of teamwork",
		"Some evidence of collaboration and ownership",
		"Little evidence of teamwork or reflection",
		"Dismissive or disengaged at times",
		"Frequently disengaged",
		"No evidence available",
	},
}

// strictness shifts the band floors up for harder interviews so the same
// answer earns a lower score.
func strictness(d models.Difficulty) int {
	switch d {
	case models.DifficultyAdvanced:
		return 5
	case models.DifficultyBeginner:
		return -5
	default:
		return 0
	}
}

// Rubrics returns the scoring rubric for every overall dimension at the given
// difficulty.
func Rubrics(d models.Difficulty) []Rubric {
	shift := strictness(d)
	out := make([]Rubric, 0, len(models.OverallSkillNames))
	for _, name := range models.OverallSkillNames {
		texts := rubricText[name]
		bands := make([]Band, 0, len(bandFloors))
		high := 100
		for i, floor := range bandFloors {
			low := floor
			if i < len(bandFloors)-1 {
				low = clamp(floor+shift, 1, 99)
			}
			bands = append(bands, Band{Low: low, High: high, Text: texts[i]})
			high = low - 1
		}
		out = append(out, Rubric{Name: strings.ToUpper(name), Bands: bands})
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
