package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"interview-session-service/internal/app"
	"interview-session-service/internal/models"
)

type feedbackOptions struct {
	sessionId  string
	role       string
	kind       string
	difficulty string
	employer   string
	skills     []string
	out        string
	persist    bool
}

func newFeedbackCommand() *cobra.Command {
	opts := &feedbackOptions{}
	cmd := &cobra.Command{
		Use:   "feedback <transcript.json>",
		Short: "Generate a feedback report from a transcript file",
		Long: `Feedback assesses a transcript and prints the report.

The file holds either a list of transcript entries or an object with
"transcript" and "config" keys. Flags override the embedded config. With
--persist the report is also cached, stored and published using the
configured backends.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadTranscriptFile(args[0])
			if err != nil {
				return err
			}
			opts.apply(req.Config)
			return runFeedback(cmd, opts, req)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sessionId, "session", "", "session id (default: random)")
	f.StringVar(&opts.role, "role", "", "target role")
	f.StringVar(&opts.kind, "type", "", "interview type, e.g. Technical")
	f.StringVar(&opts.difficulty, "difficulty", "", "Beginner, Intermediate or Advanced")
	f.StringVar(&opts.employer, "employer", "", "target employer")
	f.StringSliceVar(&opts.skills, "skills", nil, "skills to assess")
	f.StringVarP(&opts.out, "out", "o", "", "write the report to this file instead of stdout")
	f.BoolVar(&opts.persist, "persist", false, "store the report in the configured backends")
	return cmd
}

func (o *feedbackOptions) apply(sc *models.SessionConfig) {
	if o.role != "" {
		sc.Role = o.role
	}
	if o.kind != "" {
		sc.InterviewType = o.kind
	}
	if o.difficulty != "" {
		sc.Difficulty = models.Difficulty(o.difficulty)
	}
	if o.employer != "" {
		sc.Employer = o.employer
	}
	if len(o.skills) > 0 {
		sc.Skills = o.skills
	}
	if o.sessionId != "" {
		sc.SessionID = o.sessionId
	}
	if sc.SessionID == "" {
		sc.SessionID = uuid.NewString()
	}
}

func runFeedback(cmd *cobra.Command, opts *feedbackOptions, req app.GenerateRequest) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()

	var application *app.Application
	if opts.persist {
		a, backends, err := app.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer backends.Close()
		application = a
	} else {
		a, err := app.BuildLocal(ctx, cfg)
		if err != nil {
			return err
		}
		application = a
	}

	res, err := application.GenerateFeedback(ctx, req.Config.SessionID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "outcome=%s category=%s score=%d quality=%d\n",
		res.Outcome, res.Analysis.Category, res.Report.AverageScore(), res.Quality)

	if opts.out == "" {
		return printJSON(cmd.OutOrStdout(), res.Report)
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	defer f.Close()
	return printJSON(f, res.Report)
}

// loadTranscriptFile accepts a bare entry list or a GenerateRequest object.
func loadTranscriptFile(path string) (app.GenerateRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.GenerateRequest{}, err
	}
	req := app.GenerateRequest{Config: &models.SessionConfig{}}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &req.Transcript)
	} else {
		err = json.Unmarshal(data, &req)
	}
	if err != nil {
		return app.GenerateRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if req.Config == nil {
		req.Config = &models.SessionConfig{}
	}
	if req.Transcript == nil {
		req.Transcript = []models.TranscriptEntry{}
	}
	return req, nil
}
