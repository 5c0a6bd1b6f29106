package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lectoria/storyforge-backend/internal/services"
	"github.com/lectoria/storyforge-backend/internal/story"
)

type stubGenerationService struct {
	startReq    story.GenerationRequest
	startTheme  string
	startErr    error
	statusID    string
	statusValue services.RunStatus
	statusErr   error
}

func (s *stubGenerationService) Start(ctx context.Context, req story.GenerationRequest, theme string) (services.RunHandle, error) {
	s.startReq = req
	s.startTheme = theme
	if s.startErr != nil {
		return services.RunHandle{}, s.startErr
	}
	return services.RunHandle{WorkflowID: "gen-story-abc", RunID: "run-1"}, nil
}

func (s *stubGenerationService) Status(ctx context.Context, workflowID string) (services.RunStatus, error) {
	s.statusID = workflowID
	return s.statusValue, s.statusErr
}

func testRouter(svc services.GenerationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewGenerationHandler(svc)
	r.POST("/api/generations", h.Start)
	r.GET("/api/generations/:id", h.Status)
	return r
}

func TestStart_AcceptsValidRequest(t *testing.T) {
	svc := &stubGenerationService{}
	r := testRouter(svc)

	body := `{"level":"b1","kind":"story","theme":"mercados"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if svc.startReq.Level != story.LevelB1 || svc.startReq.Kind != story.KindStory {
		t.Fatalf("unexpected request passed to service: %+v", svc.startReq)
	}
	if svc.startTheme != "mercados" {
		t.Fatalf("theme not forwarded: %q", svc.startTheme)
	}

	var handle services.RunHandle
	if err := json.Unmarshal(w.Body.Bytes(), &handle); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if handle.WorkflowID != "gen-story-abc" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
}

func TestStart_RejectsUnknownLevelAndKind(t *testing.T) {
	r := testRouter(&stubGenerationService{})

	for _, body := range []string{
		`{"level":"z9","kind":"story"}`,
		`{"level":"a1","kind":"poetry"}`,
		`{"kind":"story"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestStart_ServiceFailureIs500(t *testing.T) {
	svc := &stubGenerationService{startErr: errors.New("temporal down")}
	r := testRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generations", strings.NewReader(`{"level":"a2","kind":"vocabulary"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestStatus_ForwardsWorkflowID(t *testing.T) {
	svc := &stubGenerationService{
		statusValue: services.RunStatus{WorkflowID: "gen-story-abc", Status: "running"},
	}
	r := testRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/generations/gen-story-abc", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if svc.statusID != "gen-story-abc" {
		t.Fatalf("workflow id not forwarded: %q", svc.statusID)
	}

	var status services.RunStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if status.Status != "running" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStatus_UnknownRunIs404(t *testing.T) {
	svc := &stubGenerationService{statusErr: errors.New("not found")}
	r := testRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/generations/nope", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
