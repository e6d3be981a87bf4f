// Package httpapi is the thin transport over the session registry: it
// decodes frames, runs them through the commit pipeline, and reports buffer
// state. All engine decisions live elsewhere.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/signsos/signstream-core/internal/classify"
	"github.com/signsos/signstream-core/internal/gesture"
	"github.com/signsos/signstream-core/internal/session"
)

type Server struct {
	registry   *session.Registry
	classifier classify.Classifier
	vocab      *gesture.Vocabulary
	logger     *slog.Logger
}

func NewServer(registry *session.Registry, classifier classify.Classifier, vocab *gesture.Vocabulary, log *slog.Logger) *Server {
	return &Server{
		registry:   registry,
		classifier: classifier,
		vocab:      vocab,
		logger:     log.With(slog.String("component", "http-api")),
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/clear-buffer", s.handleClearBuffer)
}

type classificationBody struct {
	HandPresent        bool    `json:"hand_present"`
	Label              string  `json:"label"`
	Confidence         float64 `json:"confidence"`
	RunnerUpLabel      string  `json:"runner_up_label"`
	RunnerUpConfidence float64 `json:"runner_up_confidence"`
	HandsDetected      int     `json:"hands_detected"`
}

type predictRequest struct {
	UserID         string              `json:"userId"`
	Landmarks      []float64           `json:"landmarks"`
	Classification *classificationBody `json:"classification"`
}

type postResult struct {
	Posted   bool   `json:"posted"`
	AudioURL string `json:"audioUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

type predictResponse struct {
	UserID        string      `json:"userId"`
	Label         string      `json:"label"`
	Confidence    float64     `json:"confidence"`
	HandsDetected int         `json:"hands_detected"`
	TextBuffer    string      `json:"text_buffer"`
	Commit        string      `json:"commit,omitempty"`
	PostResult    *postResult `json:"post_result,omitempty"`
}

type clearBufferRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"classes": s.vocab.Classes(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Classification == nil && len(req.Landmarks) == 0 {
		writeError(w, http.StatusBadRequest, "request needs either classification or landmarks")
		return
	}
	if req.UserID == "" {
		// Anonymous callers get a fresh session; the response carries the
		// identity so they can keep it.
		req.UserID = uuid.NewString()
	}

	cls := req.Classification
	if cls == nil {
		result, err := s.classifier.Classify(r.Context(), req.Landmarks)
		if err != nil {
			if errors.Is(err, classify.ErrInvalidLandmarks) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.logger.Error("classifier failed", slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "classification backend failed")
			return
		}
		cls = &classificationBody{
			HandPresent:        result.Label != "",
			Label:              result.Label,
			Confidence:         result.Confidence,
			RunnerUpLabel:      result.RunnerUpLabel,
			RunnerUpConfidence: result.RunnerUpConfidence,
			HandsDetected:      result.HandsDetected,
		}
	}

	commit, buffer, err := s.registry.Process(r.Context(), req.UserID, gesture.Frame{
		HandPresent:        cls.HandPresent,
		Label:              cls.Label,
		Confidence:         cls.Confidence,
		RunnerUpLabel:      cls.RunnerUpLabel,
		RunnerUpConfidence: cls.RunnerUpConfidence,
	})
	if err != nil {
		if errors.Is(err, gesture.ErrInvalidFrame) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("frame processing failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "frame processing failed")
		return
	}

	resp := predictResponse{
		UserID:        req.UserID,
		Label:         cls.Label,
		Confidence:    cls.Confidence,
		HandsDetected: cls.HandsDetected,
		TextBuffer:    buffer,
	}
	if commit != nil {
		resp.Commit = string(commit.Kind)
		if commit.Kind == gesture.CommitSend {
			result := &postResult{Posted: commit.Err == nil, AudioURL: commit.AudioURL}
			if commit.Err != nil {
				result.Error = commit.Err.Error()
			}
			resp.PostResult = result
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearBuffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req clearBufferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	s.registry.Clear(req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"text_buffer": s.registry.Buffer(req.UserID),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
