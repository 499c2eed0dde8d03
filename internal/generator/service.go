// Package generator implements the generation pipeline: input gate, response
// cache, prompt assembly, model invocation, response parsing, file
// classification, hierarchy rendering, static HCL validation, and the
// best-effort architecture diagram.
//
// The pipeline is deliberately forgiving: only a model backend failure is
// surfaced as an error. Every other degradation — off-topic input, malformed
// model output, diagram trouble — produces a complete Result with the
// recovery recorded in Diagnostics.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/terracoder/internal/budget"
	"github.com/54b3r/terracoder/internal/cache"
	"github.com/54b3r/terracoder/internal/classifier"
	"github.com/54b3r/terracoder/internal/diagram"
	"github.com/54b3r/terracoder/internal/hierarchy"
	"github.com/54b3r/terracoder/internal/logging"
	"github.com/54b3r/terracoder/internal/parser"
	"github.com/54b3r/terracoder/internal/retrieval"
	"github.com/54b3r/terracoder/internal/validate"
)

// DefaultProvider is assumed when a request does not name a provider.
const DefaultProvider = "aws"

// Hierarchy source selectors for Config.HierarchySource.
const (
	// HierarchySourceLocal renders file_hierarchy from the parsed filenames.
	HierarchySourceLocal = "local"
	// HierarchySourceModel trusts the model's own metadata rendering when it
	// is present, falling back to the local rendering when it is not.
	HierarchySourceModel = "model"
)

// ChatModel is the slice of the model backend the pipeline depends on.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Request is one generation request after transport-level decoding.
type Request struct {
	// Description is the natural-language statement of what to build.
	Description string
	// Provider is the target cloud provider; empty means DefaultProvider.
	Provider string
	// IncludeDiagram asks for the best-effort architecture diagram. Transport
	// layers default it to true when the caller says nothing.
	IncludeDiagram bool
}

// File is one generated artifact with its classification attached.
type File struct {
	Filename    string              `json:"filename"`
	Content     string              `json:"content"`
	Explanation string              `json:"explanation"`
	FileType    classifier.FileType `json:"file_type"`
	Category    classifier.Category `json:"category"`
}

// Diagnostics records every recovery path taken while producing a result, so
// callers can tell a clean generation from a degraded one.
type Diagnostics struct {
	// ParserFallback is set when no labeled file block matched and the whole
	// response was captured as a single main.tf.
	ParserFallback bool `json:"parser_fallback,omitempty"`
	// MetadataMissing is set when the response carried no JSON block at all.
	MetadataMissing bool `json:"metadata_missing,omitempty"`
	// MetadataInvalid is set when the JSON block failed to decode.
	MetadataInvalid bool `json:"metadata_invalid,omitempty"`
	// DiagramFallback is set when the diagram is the static fallback instead
	// of a model-derived one.
	DiagramFallback bool `json:"diagram_fallback,omitempty"`
	// ValidationIssues lists HCL syntax findings, one string per diagnostic.
	ValidationIssues []string `json:"validation_issues,omitempty"`
}

// Result is the complete outcome of one generation request.
type Result struct {
	Files          []File           `json:"files"`
	Explanation    string           `json:"explanation"`
	Resources      []string         `json:"resources"`
	EstimatedCost  string           `json:"estimated_cost"`
	FileHierarchy  string           `json:"file_hierarchy"`
	IsValidRequest bool             `json:"is_valid_request"`
	CachedResponse bool             `json:"cached_response"`
	Diagram        *diagram.Diagram `json:"architecture_diagram"`
	Diagnostics    Diagnostics      `json:"diagnostics"`
}

// Clone returns a deep copy. The pipeline stores and serves clones so a
// cached entry is never mutated through an alias held by a caller. The copy
// is faithful: nil slices stay nil, empty slices stay empty.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Files = cloneSlice(r.Files)
	c.Resources = cloneSlice(r.Resources)
	c.Diagnostics.ValidationIssues = cloneSlice(r.Diagnostics.ValidationIssues)
	if r.Diagram != nil {
		d := *r.Diagram
		d.Components = cloneSlice(r.Diagram.Components)
		d.Connections = cloneSlice(r.Diagram.Connections)
		c.Diagram = &d
	}
	return &c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

// UpstreamError is the request-fatal error class: the model backend call
// failed. Transport layers match it with errors.As to map it onto a gateway
// error status.
type UpstreamError struct {
	// Backend names the configured model backend.
	Backend string
	// Err is the underlying backend error.
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("generator: %s backend call failed: %v", e.Backend, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Config tunes the pipeline. The zero value is usable: local hierarchy
// rendering, retrieval defaults applied at point of use.
type Config struct {
	// Backend names the model backend for logs and upstream errors.
	Backend string
	// HierarchySource selects where file_hierarchy comes from:
	// HierarchySourceLocal (the default) or HierarchySourceModel.
	HierarchySource string
	// RetrievalTopK is the snippet count requested per generation when a
	// searcher is configured. Zero means the searcher's own default.
	RetrievalTopK int
	// ContextMaxTokens bounds the estimated token spend of the injected
	// snippet section. Zero means budget.DefaultMaxContextTokens.
	ContextMaxTokens int
}

// Service is the generation pipeline.
type Service struct {
	model    ChatModel
	cache    cache.Cache[*Result]
	searcher retrieval.Searcher
	cfg      Config
}

// New builds a Service. The chat model and cache are required; searcher may
// be nil to run without retrieval context.
func New(cm ChatModel, store cache.Cache[*Result], searcher retrieval.Searcher, cfg Config) (*Service, error) {
	if cm == nil {
		return nil, errors.New("generator: chat model must not be nil")
	}
	if store == nil {
		return nil, errors.New("generator: cache must not be nil")
	}
	switch cfg.HierarchySource {
	case "":
		cfg.HierarchySource = HierarchySourceLocal
	case HierarchySourceLocal, HierarchySourceModel:
	default:
		return nil, fmt.Errorf("generator: invalid hierarchy source %q (valid values: local, model)", cfg.HierarchySource)
	}
	if cfg.Backend == "" {
		cfg.Backend = "model"
	}
	return &Service{model: cm, cache: store, searcher: searcher, cfg: cfg}, nil
}

// Generate runs the full pipeline for one request.
//
// Order matters: the input gate runs before the cache lookup so rejected
// requests are never cached, and the cache lookup runs before any model
// traffic so a hit costs no upstream call at all.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	log := logging.FromContext(ctx)

	description := strings.TrimSpace(req.Description)
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = DefaultProvider
	}

	if guidance, ok := vetDescription(description); !ok {
		log.Info("request rejected by input gate", slog.String("provider", provider))
		return invalidResult(guidance), nil
	}

	key := cache.Key(description, provider)
	if hit, ok := s.cache.Get(key); ok {
		res := hit.Clone()
		res.CachedResponse = true
		s.reconcileDiagram(res, req.IncludeDiagram, provider)
		log.Debug("serving cached generation",
			slog.String("provider", provider),
			slog.String("cache_key", key[:12]),
		)
		return res, nil
	}

	msgs := buildMessages(description, provider, s.retrieve(ctx, description))
	log.Debug("prompt assembled",
		slog.Int("messages", len(msgs)),
		slog.Int("estimated_tokens", budget.EstimateMessages(msgs)),
	)

	resp, err := s.model.Generate(ctx, msgs)
	if err != nil {
		return nil, &UpstreamError{Backend: s.cfg.Backend, Err: err}
	}

	res := s.assemble(ctx, resp.Content)
	if req.IncludeDiagram {
		d, fellBack := diagram.Generate(ctx, s.model, description, provider, res.Resources)
		res.Diagram = d
		res.Diagnostics.DiagramFallback = fellBack
	}

	s.cache.Put(key, res.Clone())
	return res, nil
}

// retrieve fetches documentation snippets for the request, trimmed to the
// context budget. Retrieval failure is non-fatal: log and continue without.
func (s *Service) retrieve(ctx context.Context, description string) []retrieval.Snippet {
	if s.searcher == nil {
		return nil
	}
	log := logging.FromContext(ctx)

	snippets, err := s.searcher.Search(ctx, description, s.cfg.RetrievalTopK)
	if err != nil {
		log.Warn("documentation retrieval failed, continuing without context", slog.Any("error", err))
		return nil
	}

	before := len(snippets)
	snippets = budget.TrimSnippets(snippets, s.cfg.ContextMaxTokens)
	if dropped := before - len(snippets); dropped > 0 {
		log.Debug("trimmed retrieval context to token budget",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(snippets)),
		)
	}
	return snippets
}

// assemble parses the raw model response and derives everything the result
// carries: classified files, de-duplicated resources, metadata defaults, the
// file hierarchy, and static validation findings.
func (s *Service) assemble(ctx context.Context, raw string) *Result {
	log := logging.FromContext(ctx)
	out := parser.Parse(raw)

	res := &Result{
		Files:          make([]File, 0, len(out.Files)),
		Resources:      dedupeResources(out.Meta.Resources),
		Explanation:    strings.TrimSpace(out.Meta.Explanation),
		EstimatedCost:  strings.TrimSpace(out.Meta.EstimatedCost),
		IsValidRequest: true,
	}
	if res.Explanation == "" {
		res.Explanation = "No explanation provided."
	}
	if res.EstimatedCost == "" {
		res.EstimatedCost = "Unknown"
	}

	res.Diagnostics.ParserFallback = out.Fallback
	if out.Fallback {
		log.Warn("no labeled file blocks in model response, captured as single main.tf")
	}
	switch {
	case out.MetaErr == nil:
	case errors.Is(out.MetaErr, parser.ErrNoMetadata):
		res.Diagnostics.MetadataMissing = true
		log.Debug("model response carried no metadata block")
	default:
		res.Diagnostics.MetadataInvalid = true
		log.Warn("metadata block failed to decode", slog.Any("error", out.MetaErr))
	}

	paths := make([]string, 0, len(out.Files))
	for _, f := range out.Files {
		ft, cat := classifier.Classify(f.Name, f.Content)
		res.Files = append(res.Files, File{
			Filename:    f.Name,
			Content:     f.Content,
			Explanation: classifier.Description(ft, cat),
			FileType:    ft,
			Category:    cat,
		})
		paths = append(paths, f.Name)

		if ft == classifier.FileTypeTerraform {
			res.Diagnostics.ValidationIssues = append(res.Diagnostics.ValidationIssues, validate.Check(f.Name, f.Content)...)
		}
	}
	if n := len(res.Diagnostics.ValidationIssues); n > 0 {
		log.Warn("generated configuration has syntax findings", slog.Int("count", n))
	}

	res.FileHierarchy = hierarchy.Render(paths)
	if s.cfg.HierarchySource == HierarchySourceModel {
		if h := strings.TrimSpace(out.Meta.FileHierarchy); h != "" {
			res.FileHierarchy = h
		}
	}
	return res
}

// reconcileDiagram aligns a cached result with the current request's diagram
// preference: the entry may have been produced with the opposite one.
// Stripping is free; filling uses the static fallback so a cache hit still
// never costs a model call.
func (s *Service) reconcileDiagram(res *Result, include bool, provider string) {
	switch {
	case !include:
		res.Diagram = nil
		res.Diagnostics.DiagramFallback = false
	case res.Diagram == nil:
		res.Diagram = diagram.Fallback(provider)
		res.Diagnostics.DiagramFallback = true
	}
}

// invalidResult is the soft rejection produced by the input gate: a complete,
// well-formed result with no files and the fixed guidance as explanation.
func invalidResult(guidance string) *Result {
	return &Result{
		Files:         make([]File, 0),
		Explanation:   guidance,
		Resources:     make([]string, 0),
		EstimatedCost: "Unknown",
	}
}

// dedupeResources trims entries, drops empties, and removes duplicates while
// preserving first-seen order. The returned slice is never nil.
func dedupeResources(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
