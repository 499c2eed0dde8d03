package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/terracoder/internal/generator"
)

// newGenerateTestServer builds a Server around the given fakes for direct
// handler calls.
func newGenerateTestServer(gen *fakeGenerator, st *fakeStore) *Server {
	s := newTestServer()
	s.gen = gen
	if st != nil {
		s.store = st
	}
	return s
}

// postGenerate runs one POST /api/generate through the handler and returns
// the recorder.
func postGenerate(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleGenerate(w, req)
	return w
}

func TestHandleGenerate_Success(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{res: validResult()}
	s := newGenerateTestServer(gen, nil)

	w := postGenerate(s, `{"description":"create an EC2 instance with a security group","provider":"aws"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	var res generator.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Files) != 1 || res.Files[0].Filename != "main.tf" {
		t.Errorf("files: got %+v", res.Files)
	}
	if !res.IsValidRequest {
		t.Error("expected is_valid_request true")
	}

	if gen.calls != 1 {
		t.Errorf("expected 1 pipeline call, got %d", gen.calls)
	}
	if gen.last.Provider != "aws" {
		t.Errorf("provider: got %q", gen.last.Provider)
	}
	if !gen.last.IncludeDiagram {
		t.Error("include_diagram absent from body must default to true")
	}
}

func TestHandleGenerate_InvalidJSON(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{res: validResult()}
	s := newGenerateTestServer(gen, nil)

	w := postGenerate(s, `{not json`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if gen.calls != 0 {
		t.Errorf("pipeline must not run on malformed JSON, got %d calls", gen.calls)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("error body must itself be valid JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected non-empty error field")
	}
}

func TestHandleGenerate_DescriptionBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		description string
		wantStatus  int
	}{
		{name: "too short", description: "vpc now", wantStatus: http.StatusBadRequest},
		{name: "whitespace only", description: "           ", wantStatus: http.StatusBadRequest},
		{name: "exactly min", description: "vpc please", wantStatus: http.StatusOK},
		{name: "too long", description: "create a vpc " + strings.Repeat("x", 988), wantStatus: http.StatusBadRequest},
		{name: "exactly max", description: "create a vpc " + strings.Repeat("x", 987), wantStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen := &fakeGenerator{res: validResult()}
			s := newGenerateTestServer(gen, nil)

			payload, err := json.Marshal(map[string]string{"description": tc.description})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			w := postGenerate(s, string(payload))

			if w.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", w.Code, tc.wantStatus)
			}
			wantCalls := 0
			if tc.wantStatus == http.StatusOK {
				wantCalls = 1
			}
			if gen.calls != wantCalls {
				t.Errorf("pipeline calls: got %d, want %d", gen.calls, wantCalls)
			}
		})
	}
}

func TestHandleGenerate_OffTopicIsSoft200(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{res: rejectedResult()}
	s := newGenerateTestServer(gen, nil)

	w := postGenerate(s, `{"description":"write me a poem about the sea"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("gate rejections are soft: expected 200, got %d", w.Code)
	}

	var res generator.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.IsValidRequest {
		t.Error("expected is_valid_request false")
	}
	if len(res.Files) != 0 {
		t.Errorf("expected no files, got %d", len(res.Files))
	}
}

func TestHandleGenerate_ProviderDefaultsAndNormalizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "absent", body: `{"description":"create a vpc with two subnets"}`, want: "aws"},
		{name: "uppercase", body: `{"description":"create a vpc with two subnets","provider":"AZURE"}`, want: "azure"},
		{name: "padded", body: `{"description":"create a vpc with two subnets","provider":" gcp "}`, want: "gcp"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gen := &fakeGenerator{res: validResult()}
			s := newGenerateTestServer(gen, nil)

			if w := postGenerate(s, tc.body); w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if gen.last.Provider != tc.want {
				t.Errorf("provider: got %q, want %q", gen.last.Provider, tc.want)
			}
		})
	}
}

func TestHandleGenerate_IncludeDiagramExplicitFalse(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{res: validResult()}
	s := newGenerateTestServer(gen, nil)

	w := postGenerate(s, `{"description":"create a vpc with two subnets","include_diagram":false}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gen.last.IncludeDiagram {
		t.Error("explicit include_diagram:false must be passed through")
	}
}

func TestHandleGenerate_UpstreamErrorIs502(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: &generator.UpstreamError{Backend: "mistral", Err: errors.New("boom")}}
	s := newGenerateTestServer(gen, nil)

	w := postGenerate(s, `{"description":"create a vpc with two subnets"}`)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected non-empty error field")
	}
	// The raw backend error never reaches the client.
	if strings.Contains(body["error"], "boom") {
		t.Errorf("error leaks backend detail: %q", body["error"])
	}
}

func TestHandleGenerate_OtherErrorIs500(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("unexpected")}
	s := newGenerateTestServer(gen, nil)

	w := postGenerate(s, `{"description":"create a vpc with two subnets"}`)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// History recording
// ---------------------------------------------------------------------------

func TestHandleGenerate_SavesHistory(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	s := newGenerateTestServer(&fakeGenerator{res: validResult()}, st)

	w := postGenerate(s, `{"description":"create an EC2 instance with a security group","provider":"aws"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if len(st.saved) != 1 {
		t.Fatalf("expected 1 saved record, got %d", len(st.saved))
	}
	rec := st.saved[0]
	if rec.Description != "create an EC2 instance with a security group" {
		t.Errorf("description: got %q", rec.Description)
	}
	if rec.Provider != "aws" {
		t.Errorf("provider: got %q", rec.Provider)
	}
	if rec.Subject == "" {
		t.Error("expected a non-empty subject")
	}
	if rec.EstimatedCost != "Low" {
		t.Errorf("estimated cost: got %q", rec.EstimatedCost)
	}

	var files []generator.File
	if err := json.Unmarshal(rec.Files, &files); err != nil {
		t.Fatalf("files must round-trip as JSON: %v", err)
	}
	if len(files) != 1 || files[0].Filename != "main.tf" {
		t.Errorf("files: got %+v", files)
	}
}

func TestHandleGenerate_CachedResponseSkipsHistory(t *testing.T) {
	t.Parallel()

	res := validResult()
	res.CachedResponse = true
	st := &fakeStore{}
	s := newGenerateTestServer(&fakeGenerator{res: res}, st)

	if w := postGenerate(s, `{"description":"create a vpc with two subnets"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(st.saved) != 0 {
		t.Errorf("cache hits must not duplicate history, got %d saves", len(st.saved))
	}
}

func TestHandleGenerate_RejectionSkipsHistory(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	s := newGenerateTestServer(&fakeGenerator{res: rejectedResult()}, st)

	if w := postGenerate(s, `{"description":"write me a poem about the sea"}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(st.saved) != 0 {
		t.Errorf("rejections must not enter history, got %d saves", len(st.saved))
	}
}

func TestHandleGenerate_SaveFailureDoesNotFailRequest(t *testing.T) {
	t.Parallel()

	st := &fakeStore{saveErr: errors.New("disk full")}
	s := newGenerateTestServer(&fakeGenerator{res: validResult()}, st)

	w := postGenerate(s, `{"description":"create a vpc with two subnets"}`)

	if w.Code != http.StatusOK {
		t.Errorf("history is best-effort: expected 200, got %d", w.Code)
	}

	var res generator.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Files) != 1 {
		t.Errorf("expected full result despite save failure, got %+v", res)
	}
}
