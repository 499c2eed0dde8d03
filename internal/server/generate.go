package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/54b3r/terracoder/internal/generator"
	"github.com/54b3r/terracoder/internal/logging"
	"github.com/54b3r/terracoder/internal/store"
)

// maxGenerateBody caps the POST /api/generate request body. Descriptions are
// bounded at 1000 characters, so anything near this limit is garbage.
const maxGenerateBody = 1 << 20

// handleGenerate handles POST /api/generate.
//
// Wire contract:
//   - malformed JSON or an out-of-bounds description → 400
//   - a well-formed but non-infrastructure description → 200 with
//     is_valid_request:false and guidance in the explanation
//   - model backend failure → 502
//   - anything else the pipeline recovers from locally → 200 with
//     diagnostics flags set
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var body generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody))
	if err := dec.Decode(&body); err != nil {
		s.metrics.observeGenerate(outcomeBadRequest, time.Since(start))
		writeJSONError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	desc := strings.TrimSpace(body.Description)
	if n := utf8.RuneCountInString(desc); n < generator.MinDescriptionLen || n > generator.MaxDescriptionLen {
		s.metrics.observeGenerate(outcomeBadRequest, time.Since(start))
		writeJSONError(w, fmt.Sprintf("description must be between %d and %d characters",
			generator.MinDescriptionLen, generator.MaxDescriptionLen), http.StatusBadRequest)
		return
	}

	provider := strings.ToLower(strings.TrimSpace(body.Provider))
	if provider == "" {
		provider = generator.DefaultProvider
	}

	req := generator.Request{
		Description:    desc,
		Provider:       provider,
		IncludeDiagram: body.IncludeDiagram == nil || *body.IncludeDiagram,
	}

	s.metrics.generateActive.Inc()
	res, err := s.gen.Generate(r.Context(), req)
	s.metrics.generateActive.Dec()

	if err != nil {
		var upstream *generator.UpstreamError
		if errors.As(err, &upstream) {
			log.Error("generation backend failed",
				slog.String("backend", upstream.Backend),
				slog.Any("error", err),
			)
			s.metrics.observeGenerate(outcomeUpstreamError, time.Since(start))
			writeJSONError(w, "generation backend unavailable", http.StatusBadGateway)
			return
		}
		log.Error("generation failed", slog.Any("error", err))
		s.metrics.observeGenerate(outcomeError, time.Since(start))
		writeJSONError(w, "generation failed", http.StatusInternalServerError)
		return
	}

	outcome := outcomeOK
	switch {
	case !res.IsValidRequest:
		outcome = outcomeRejected
	case res.CachedResponse:
		outcome = outcomeCached
	}
	s.metrics.observeGenerate(outcome, time.Since(start))
	s.metrics.observeDiagnostics(res.Diagnostics)

	// Only fresh, accepted generations enter history. Cache hits would
	// duplicate their original record and rejections carry no files.
	if res.IsValidRequest && !res.CachedResponse {
		s.recordGeneration(r, req, res)
	}

	writeJSON(w, http.StatusOK, res)
}

// recordGeneration persists one generation to the history store. Failures
// are logged and swallowed: history is best-effort and never fails the
// request that produced it.
func (s *Server) recordGeneration(r *http.Request, req generator.Request, res *generator.Result) {
	if s.store == nil {
		return
	}

	files, err := json.Marshal(res.Files)
	if err != nil {
		files = []byte("[]")
	}

	rec := store.Record{
		Subject:       clientIP(r),
		Description:   req.Description,
		Provider:      req.Provider,
		Explanation:   res.Explanation,
		EstimatedCost: res.EstimatedCost,
		FileHierarchy: res.FileHierarchy,
		Resources:     res.Resources,
		Files:         files,
	}
	if err := s.store.Save(r.Context(), rec); err != nil {
		logging.FromContext(r.Context()).Warn("history save failed", slog.Any("error", err))
	}
}
