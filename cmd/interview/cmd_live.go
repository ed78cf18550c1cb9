package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"interview-session-service/internal/app"
	"interview-session-service/internal/config"
	"interview-session-service/internal/media"
	"interview-session-service/internal/models"
	"interview-session-service/internal/service/session"
	"interview-session-service/internal/service/stt"
	"interview-session-service/internal/service/stt/google"
	sttmock "interview-session-service/internal/service/stt/mock"
	"interview-session-service/internal/sidetask"
	"interview-session-service/internal/transport"
	transportmock "interview-session-service/internal/transport/mock"
	"interview-session-service/internal/transport/ws"
)

type liveOptions struct {
	sessionId  string
	configFile string
	role       string
	url        string
	mock       bool
	wav        string
	loop       bool
	localSTT   bool
	sideTasks  string
	codeFile   string
	language   string
	duration   time.Duration
	persist    bool
}

func newLiveCommand() *cobra.Command {
	opts := &liveOptions{}
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run a live interview session",
		Long: `Live connects to the media endpoint, publishes the microphone and prints
status changes and transcript lines until interrupted or --duration elapses.
The session is then assessed and its completion record printed.

--mock replaces the endpoint with an in-process scripted interviewer. --wav
streams a PCM WAV file as the microphone; with --local-stt the same audio also
feeds the configured recognizer (STT_PROVIDER=google or mock).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.sessionId, "session", "", "session id (default: random)")
	f.StringVarP(&opts.configFile, "config", "c", "", "YAML session config file")
	f.StringVar(&opts.role, "role", "", "target role")
	f.StringVar(&opts.url, "url", "", "media endpoint (overrides SESSION_TRANSPORT_URL)")
	f.BoolVar(&opts.mock, "mock", false, "use the in-process scripted interviewer")
	f.StringVar(&opts.wav, "wav", "", "PCM WAV file to use as the microphone")
	f.BoolVar(&opts.loop, "loop", false, "loop the WAV file")
	f.BoolVar(&opts.localSTT, "local-stt", false, "transcribe the microphone locally")
	f.StringVar(&opts.sideTasks, "side-tasks", "", "YAML side-task queue (overrides CHALLENGE_SIDE_TASK_FILE)")
	f.StringVar(&opts.codeFile, "code-file", "", "submit this file for every coding challenge instead of skipping")
	f.StringVar(&opts.language, "language", "", "language of --code-file (default: from extension)")
	f.DurationVar(&opts.duration, "duration", 0, "end the session after this long")
	f.BoolVar(&opts.persist, "persist", false, "persist, cache and publish using the configured backends")
	return cmd
}

func runLive(cmd *cobra.Command, opts *liveOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	out := cmd.OutOrStdout()
	cfg := loadConfig()

	sc, err := opts.sessionConfig(cfg)
	if err != nil {
		return err
	}

	var (
		application *app.Application
		deps        session.Deps
		subs        app.SubmissionStore
	)
	if opts.persist {
		a, backends, err := app.Build(ctx, cfg)
		if err != nil {
			return err
		}
		defer backends.Close()
		application = a
		deps.Events = backends.Publisher
		if backends.Postgres != nil {
			deps.Store = backends.Postgres
			subs = backends.Postgres
		}
	} else {
		a, err := app.BuildLocal(ctx, cfg)
		if err != nil {
			return err
		}
		application = a
	}

	scfg := session.ConfigFrom(cfg)
	if opts.url != "" {
		scfg.TransportURL = opts.url
	}

	if opts.mock {
		deps.Transport = transportmock.New(transportmock.DefaultScript)
		deps.Credentials = staticCredentials{}
	} else {
		deps.Transport = ws.New(sc.SessionID)
		source := &session.CachingSource{
			Cache:    session.NewCredentialCache(cfg.Session.CredentialFreshness, nil),
			Upstream: session.NewHTTPSource(cfg.Session.CredentialURL, cfg.Session.CredentialAttempts, cfg.Session.CredentialRetryDelay),
		}
		if err := source.Prefetch(ctx, sc.SessionID); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "credential prefetch failed, fetching again on start: %v\n", err)
		}
		deps.Credentials = source
	}

	if opts.wav != "" {
		deps.Microphone = media.NewWAVMicrophone(opts.wav, 100*time.Millisecond, opts.loop, nil)
	} else {
		deps.Microphone = &media.Silent{}
	}

	if opts.localSTT {
		rec, err := newRecognizer(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Recognizer = rec
	}

	printer := &transcriptPrinter{out: out, printed: map[int64]bool{}}
	deps.OnTranscript = printer.print

	var ctrl *session.Controller
	deps.OnChallenge = func(item models.SideTaskItem) {
		fmt.Fprintf(out, "== coding challenge: %s\n", item.Text)
		go opts.answerChallenge(ctx, ctrl, out)
	}

	ctrl = session.New(sc.SessionID, scfg, deps)
	stream, err := ctrl.Start(ctx, sc)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	var deadline <-chan time.Time
	if opts.duration > 0 {
		timer := time.NewTimer(opts.duration)
		defer timer.Stop()
		deadline = timer.C
	}

wait:
	for {
		select {
		case change, ok := <-stream:
			if !ok {
				break wait
			}
			fmt.Fprintf(out, "-- %s -> %s %s\n", change.From, change.To, change.Reason)
			if change.To == session.StatusError {
				break wait
			}
		case <-deadline:
			break wait
		case <-ctx.Done():
			break wait
		}
	}

	// The signal context is done by now; completion gets its own deadline.
	doneCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	rec, err := application.CompleteSession(doneCtx, ctrl, sc, subs)
	if err != nil {
		return err
	}
	if failure := ctrl.Err(); failure != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "session failed: %v\n", failure)
	}
	return printJSON(out, rec)
}

func (o *liveOptions) sessionConfig(cfg *config.Configuration) (models.SessionConfig, error) {
	var sc models.SessionConfig
	if o.configFile != "" {
		data, err := os.ReadFile(o.configFile)
		if err != nil {
			return sc, err
		}
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return sc, fmt.Errorf("parse %s: %w", o.configFile, err)
		}
	}
	if o.sessionId != "" {
		sc.SessionID = o.sessionId
	}
	if sc.SessionID == "" {
		sc.SessionID = uuid.NewString()
	}
	if o.role != "" {
		sc.Role = o.role
	}

	path := cfg.Challenge.SideTaskFile
	if o.sideTasks != "" {
		path = o.sideTasks
	}
	if len(sc.SideTasks) == 0 && path != "" {
		items, err := sidetask.Load(path)
		if err != nil {
			return sc, err
		}
		sc.SideTasks = items
	}
	return sc, nil
}

// answerChallenge submits --code-file or skips the open challenge.
func (o *liveOptions) answerChallenge(ctx context.Context, ctrl *session.Controller, out io.Writer) {
	if o.codeFile == "" {
		if _, err := ctrl.AbortChallenge(ctx); err != nil {
			fmt.Fprintf(out, "== skip failed: %v\n", err)
		}
		return
	}
	code, err := os.ReadFile(o.codeFile)
	if err != nil {
		fmt.Fprintf(out, "== read %s: %v\n", o.codeFile, err)
		_, _ = ctrl.AbortChallenge(ctx)
		return
	}
	lang := o.language
	if lang == "" {
		lang = strings.TrimPrefix(filepath.Ext(o.codeFile), ".")
	}
	sub, err := ctrl.SubmitChallenge(ctx, string(code), lang)
	if err != nil {
		fmt.Fprintf(out, "== submit failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "== submitted %s after %s\n", sub.ID, sub.TimeSpent.Round(time.Second))
}

func newRecognizer(ctx context.Context, cfg *config.Configuration) (stt.Adapter, error) {
	if cfg.STT.Provider != "google" {
		return sttmock.New(), nil
	}
	return google.New(ctx, google.Config{
		LanguageCode:   cfg.STT.LanguageCode,
		SampleRateHz:   cfg.STT.SampleRateHz,
		InterimResults: cfg.STT.InterimResults,
		AudioEncoding:  cfg.STT.AudioEncoding,
	})
}

// staticCredentials serves the in-process interviewer, which accepts anything.
type staticCredentials struct{}

func (staticCredentials) Fetch(ctx context.Context, sessionId string) (transport.Credential, error) {
	return transport.Credential{URL: "mock://" + sessionId, Token: "local"}, nil
}

// transcriptPrinter prints every completed entry once.
type transcriptPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	printed map[int64]bool
}

func (p *transcriptPrinter) print(entries []models.TranscriptEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		if !e.Complete || p.printed[e.ID] {
			continue
		}
		p.printed[e.ID] = true
		fmt.Fprintf(p.out, "%s: %s\n", strings.ToUpper(string(e.Speaker)), e.Text)
	}
}
