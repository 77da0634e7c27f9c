// Package chi implements the HTTP API: scoring, health, and metrics routes.
package chi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quizforge/quizmetrics/internal/domain"
	"github.com/quizforge/quizmetrics/internal/textutil"
	healthuc "github.com/quizforge/quizmetrics/internal/usecase/health"
	scoringuc "github.com/quizforge/quizmetrics/internal/usecase/scoring"
)

// Scorer is the consumer interface for the scoring service.
type Scorer interface {
	Score(ctx context.Context, text string, records []domain.Question, opts scoringuc.Options) scoringuc.Report
}

// HealthChecker is the consumer interface for the health service.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server handles the HTTP API.
type Server struct {
	scoring Scorer
	health  HealthChecker
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(scoring Scorer, health HealthChecker, logger *zap.Logger) *Server {
	return &Server{scoring: scoring, health: health, logger: logger}
}

// Routes mounts all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/score", s.handleScore)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

type questionPayload struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
}

type scoreRequest struct {
	Text      string            `json:"text"`
	Questions []questionPayload `json:"questions"`
	TopK      int               `json:"top_k,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
}

// scoreResponse reports each metric independently; null means the metric
// was unavailable for this request.
type scoreResponse struct {
	Relevance         *float64 `json:"relevance"`
	DistractorQuality *float64 `json:"distractor_quality"`
	ConceptCoverage   *float64 `json:"concept_coverage"`
	Diversity         *float64 `json:"diversity"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleScore handles POST /v1/score.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return
	}

	if req.Threshold < 0 || req.Threshold > 1 {
		writeError(w, http.StatusBadRequest, "validation_failed", "threshold must be in [0, 1]")
		return
	}

	records := make([]domain.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		records = append(records, domain.Question{
			Text:          q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}

	report := s.scoring.Score(r.Context(), textutil.Clean(req.Text), records, scoringuc.Options{
		TopK:      req.TopK,
		Threshold: req.Threshold,
	})

	writeJSON(w, http.StatusOK, scoreResponse{
		Relevance:         report.Relevance,
		DistractorQuality: report.DistractorQuality,
		ConceptCoverage:   report.ConceptCoverage,
		Diversity:         report.Diversity,
	})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
