// Package gateway exposes the evaluation pipeline over HTTP: a small JSON
// API for run control plus SSE and websocket streams for progress.
package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"llmfit/internal/registry"
	"llmfit/internal/report"
	"llmfit/internal/state"
)

type Server struct {
	registry *registry.Registry
	reports  *report.S3Store // optional; nil disables archived report lookup
}

func NewServer(reg *registry.Registry, reports *report.S3Store) *Server {
	return &Server{registry: reg, reports: reports}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/evaluations", s.handleEvaluations)
	mux.HandleFunc("/api/evaluations/", s.handleEvaluation)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in struct {
		Problem string `json:"problem"`
		Context string `json:"context,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	runID, err := s.registry.StartRun(r.Context(), state.RunInput{Problem: in.Problem, Context: in.Context})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID})
}

// handleEvaluation routes /api/evaluations/{id}[/answers|result|events|watch].
func (s *Server) handleEvaluation(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/evaluations/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	runID := strings.TrimSpace(parts[0])
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		switch r.Method {
		case http.MethodGet:
			s.handleStatus(w, r, runID)
		case http.MethodDelete:
			s.handleCancel(w, r, runID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "answers":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleAnswers(w, r, runID)
	case "result":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleResult(w, r, runID)
	case "events":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.handleEvents(w, r, runID)
	case "watch":
		s.handleWatch(w, r, runID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, runID string) {
	status, ok := s.registry.Status(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancel(w http.ResponseWriter, _ *http.Request, runID string) {
	if _, ok := s.registry.Status(runID); !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	changed := s.registry.CancelRun(runID)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": changed})
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request, runID string) {
	var in struct {
		Answers []struct {
			QuestionID string `json:"questionId"`
			Answer     string `json:"answer"`
		} `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(in.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "answers are required")
		return
	}

	answers := make([]state.Answer, 0, len(in.Answers))
	for _, a := range in.Answers {
		answers = append(answers, state.Answer{QuestionID: a.QuestionID, AnswerText: a.Answer})
	}
	switch err := s.registry.SubmitAnswers(r.Context(), runID, answers); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"runId": runID, "status": string(state.StatusRunning)})
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, registry.ErrNotSuspended):
		writeError(w, http.StatusConflict, "run is not suspended")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, runID string) {
	if result, ok := s.registry.Result(runID); ok {
		writeJSON(w, http.StatusOK, result)
		return
	}
	if s.reports != nil {
		result, err := s.reports.Fetch(r.Context(), runID)
		if err == nil {
			writeJSON(w, http.StatusOK, result)
			return
		}
		if !errors.Is(err, report.ErrNotFound) {
			log.Printf("gateway: fetch archived report %s: %v", runID, err)
		}
	}
	writeError(w, http.StatusNotFound, "result not found")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// withCORS mirrors the permissive CORS policy the frontends expect.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, Last-Event-ID")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
