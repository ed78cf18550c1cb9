package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview-session-service/internal/app"
	"interview-session-service/internal/models"
	"interview-session-service/internal/service/feedback"
)

type fakeService struct {
	lastID  string
	lastReq app.GenerateRequest
	genErr  error
	report  *models.FeedbackReport
	getErr  error
}

func (f *fakeService) GenerateFeedback(ctx context.Context, id string, req app.GenerateRequest) (feedback.Result, error) {
	f.lastID, f.lastReq = id, req
	if f.genErr != nil {
		return feedback.Result{}, f.genErr
	}
	return feedback.Result{
		Report: models.FeedbackReport{
			ExecutiveSummary: "ok",
			OverallSkills:    []models.SkillScore{{Name: models.SkillCommunication, Score: 80}, {Name: models.SkillProblemSolving, Score: 61}},
		},
		Analysis: feedback.Analysis{Category: feedback.CategoryMedium},
		Outcome:  feedback.OutcomeGenerated,
		Quality:  88,
	}, nil
}

func (f *fakeService) Feedback(ctx context.Context, id string) (*models.FeedbackReport, error) {
	f.lastID = id
	return f.report, f.getErr
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	h := NewRouter(&fakeService{})
	assert.Equal(t, "ok", do(t, h, http.MethodGet, "/v1/liveness", "").Body.String())
	assert.Equal(t, "ready", do(t, h, http.MethodGet, "/v1/readiness", "").Body.String())
}

func TestGenerate(t *testing.T) {
	svc := &fakeService{}
	h := NewRouter(svc)

	rec := do(t, h, http.MethodPost, "/v1/sessions/s-1/feedback",
		`{"transcript":[{"id":1,"speaker":"user","text":"hi","isComplete":true}],"config":{"role":"SRE"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.Outcome)
	assert.Equal(t, "medium", resp.Category)
	assert.Equal(t, 88, resp.Quality)
	assert.Equal(t, 71, resp.Score)
	assert.Equal(t, "s-1", svc.lastID)
	require.Len(t, svc.lastReq.Transcript, 1)
	assert.Equal(t, "SRE", svc.lastReq.Config.Role)
}

func TestGenerate_EmptyBodyUsesStore(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, NewRouter(svc), http.MethodPost, "/v1/sessions/s-2/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.lastReq.Transcript)
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"bad json", `{"transcript":`, nil, http.StatusBadRequest},
		{"unknown field", `{"bogus":1}`, nil, http.StatusBadRequest},
		{"unknown session", ``, app.ErrSessionNotFound, http.StatusNotFound},
		{"store down", ``, errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, NewRouter(&fakeService{genErr: tt.err}), http.MethodPost, "/v1/sessions/s-1/feedback", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestGet(t *testing.T) {
	svc := &fakeService{report: &models.FeedbackReport{ExecutiveSummary: "merged"}}
	rec := do(t, NewRouter(svc), http.MethodGet, "/v1/sessions/s-3/feedback", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"executiveSummary":"merged"`)
	assert.Equal(t, "s-3", svc.lastID)

	rec = do(t, NewRouter(&fakeService{getErr: app.ErrNoFeedback}), http.MethodGet, "/v1/sessions/s-3/feedback", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMerge(t *testing.T) {
	h := NewRouter(&fakeService{})
	older := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).Format(time.RFC3339)
	newer := time.Date(2026, 3, 2, 9, 5, 0, 0, time.UTC).Format(time.RFC3339)

	body := `{"persisted":{"executiveSummary":"persisted","generatedAt":"` + newer + `"},` +
		`"instant":{"executiveSummary":"instant","generatedAt":"` + older + `"}}`
	rec := do(t, h, http.MethodPost, "/v1/feedback/merge", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.FeedbackReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "persisted", got.ExecutiveSummary)

	rec = do(t, h, http.MethodPost, "/v1/feedback/merge", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
