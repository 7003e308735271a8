package server

import (
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/e5sim/internal/embedding"
)

// SimilarityRequest is the body of POST /api/similarity.
type SimilarityRequest struct {
	Text1 string `json:"text1"`
	Text2 string `json:"text2"`
}

// SimilarityResponse is the reply of POST /api/similarity.
type SimilarityResponse struct {
	Score float32 `json:"score"`
	Model string  `json:"model"`
}

// ScoreRequest is the body of POST /api/score.
type ScoreRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
	Ranked   bool     `json:"ranked,omitempty"`
}

// PassageResult is one scored passage.
type PassageResult struct {
	Index   int     `json:"index"`
	Passage string  `json:"passage"`
	Score   float32 `json:"score"`
	Error   string  `json:"error,omitempty"`
}

// ScoreResponse is the reply of POST /api/score.
type ScoreResponse struct {
	Model   string          `json:"model"`
	Results []PassageResult `json:"results"`
	Warning string          `json:"warning,omitempty"`
}

// EmbedRequest is the body of POST /api/embed.
type EmbedRequest struct {
	Text string `json:"text"`
}

// EmbedResponse is the reply of POST /api/embed.
type EmbedResponse struct {
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Embedding  []float32 `json:"embedding"`
}

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// decodeJSON reads a JSON body into v, answering 400/413 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, embedding.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":  "ready",
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Service) handleModel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.scorer.Model())
}

func (s *Service) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	var req SimilarityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	score, err := s.scorer.ComputeSimilarity(req.Text1, req.Text2)
	if err != nil {
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("Similarity request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, SimilarityResponse{Score: score, Model: s.scorer.Model().Name})
}

func (s *Service) handleScore(w http.ResponseWriter, r *http.Request) {
	var req ScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp := ScoreResponse{
		Model:   s.scorer.Model().Name,
		Results: []PassageResult{},
	}
	if req.Query == "" || len(req.Passages) == 0 {
		resp.Warning = "query or passages list is empty, no similarities to calculate"
	}

	scores := s.scorer.ScorePassages(req.Query, req.Passages)
	if req.Ranked {
		scores = embedding.RankPassages(scores)
	}
	for _, sc := range scores {
		result := PassageResult{Index: sc.Index, Passage: sc.Passage, Score: sc.Score}
		if sc.Err != nil {
			result.Error = sc.Err.Error()
		}
		resp.Results = append(resp.Results, result)
	}

	writeJSON(w, resp)
}

func (s *Service) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req EmbedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	vec, err := s.scorer.Embed(r.Context(), req.Text)
	if err != nil {
		log.Error().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("Embed request failed")
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	writeJSON(w, EmbedResponse{
		Model:      s.scorer.Model().Name,
		Dimensions: len(vec),
		Embedding:  vec,
	})
}
