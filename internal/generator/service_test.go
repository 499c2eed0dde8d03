package generator

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/terracoder/internal/cache"
	"github.com/54b3r/terracoder/internal/retrieval"
)

// ── Stubs ────────────────────────────────────────────────────────────────

// scriptedModel replays canned assistant replies in order, repeating the
// last one once the script runs out.
type scriptedModel struct {
	replies []string
	err     error
	calls   [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.calls = append(m.calls, input)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}
	i := len(m.calls) - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return &schema.Message{Role: schema.Assistant, Content: m.replies[i]}, nil
}

type stubSearcher struct {
	snippets []retrieval.Snippet
	err      error
	queries  []string
	topKs    []int
}

func (s *stubSearcher) Search(_ context.Context, query string, topK int) ([]retrieval.Snippet, error) {
	s.queries = append(s.queries, query)
	s.topKs = append(s.topKs, topK)
	if s.err != nil {
		return nil, s.err
	}
	return s.snippets, nil
}

// ── Fixtures ─────────────────────────────────────────────────────────────

func fenced(lang, name, body string) string {
	return "```" + lang + ":" + name + "\n" + body + "\n```"
}

func jsonBlock(body string) string {
	return "```json\n" + body + "\n```"
}

var ec2MainTF = `resource "aws_instance" "web" {
  ami           = "ami-0c02fb55956c7d316"
  instance_type = "t3.micro"
}`

var ec2SecurityTF = `resource "aws_security_group" "web" {
  name = "web-sg"

  ingress {
    from_port   = 443
    to_port     = 443
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }
}`

var ec2Metadata = `{"explanation": "An EC2 instance fronted by a security group.", "resources": ["aws_instance", "aws_security_group"], "estimated_cost": "Low", "file_hierarchy": "terraform-project/\n├── main.tf\n└── security.tf"}`

var ec2Reply = fenced("terraform", "main.tf", ec2MainTF) + "\n\n" +
	fenced("terraform", "security.tf", ec2SecurityTF) + "\n\n" +
	jsonBlock(ec2Metadata)

var mermaidReply = `graph TD
User[User] --> EC2[EC2 Instance]
EC2[EC2 Instance] --> RDS[RDS Database]`

func newService(t *testing.T, cm ChatModel, searcher retrieval.Searcher, cfg Config) *Service {
	t.Helper()
	svc, err := New(cm, cache.NewMemory[*Result](), searcher, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

// ── Pipeline ─────────────────────────────────────────────────────────────

func TestGenerateEndToEnd(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{replies: []string{ec2Reply, mermaidReply}}
	svc := newService(t, cm, nil, Config{})

	res, err := svc.Generate(context.Background(), Request{
		Description:    "create an EC2 instance with a security group",
		IncludeDiagram: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !res.IsValidRequest {
		t.Error("IsValidRequest = false, want true")
	}
	if res.CachedResponse {
		t.Error("CachedResponse = true on first request")
	}

	if len(res.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(res.Files))
	}
	main, sg := res.Files[0], res.Files[1]
	if main.Filename != "main.tf" || sg.Filename != "security.tf" {
		t.Fatalf("filenames = %q, %q", main.Filename, sg.Filename)
	}
	if main.FileType != "terraform" || sg.FileType != "terraform" {
		t.Errorf("file types = %q, %q, want terraform", main.FileType, sg.FileType)
	}
	if main.Category != "compute" {
		t.Errorf("main.tf category = %q, want compute", main.Category)
	}
	if sg.Category != "network" {
		t.Errorf("security.tf category = %q, want network", sg.Category)
	}
	if main.Content != ec2MainTF {
		t.Errorf("main.tf content = %q", main.Content)
	}
	if main.Explanation != "Terraform compute configuration" {
		t.Errorf("main.tf explanation = %q", main.Explanation)
	}

	wantResources := []string{"aws_instance", "aws_security_group"}
	if !reflect.DeepEqual(res.Resources, wantResources) {
		t.Errorf("resources = %v, want %v", res.Resources, wantResources)
	}
	if res.Explanation != "An EC2 instance fronted by a security group." {
		t.Errorf("explanation = %q", res.Explanation)
	}
	if res.EstimatedCost != "Low" {
		t.Errorf("estimated cost = %q, want Low", res.EstimatedCost)
	}
	wantTree := "terraform-project/\n├── main.tf\n└── security.tf"
	if res.FileHierarchy != wantTree {
		t.Errorf("hierarchy = %q, want %q", res.FileHierarchy, wantTree)
	}

	if res.Diagram == nil {
		t.Fatal("diagram is nil with IncludeDiagram=true")
	}
	if res.Diagnostics.DiagramFallback {
		t.Error("diagram fallback set despite valid model reply")
	}
	if want := []string{"User", "EC2 Instance", "RDS Database"}; !reflect.DeepEqual(res.Diagram.Components, want) {
		t.Errorf("diagram components = %v, want %v", res.Diagram.Components, want)
	}

	d := res.Diagnostics
	if d.ParserFallback || d.MetadataMissing || d.MetadataInvalid || len(d.ValidationIssues) > 0 {
		t.Errorf("unexpected diagnostics on clean generation: %+v", d)
	}

	if len(cm.calls) != 2 {
		t.Fatalf("model called %d times, want 2 (generation + diagram)", len(cm.calls))
	}
	prompt := cm.calls[0]
	if len(prompt) != 2 {
		t.Fatalf("generation prompt has %d messages, want 2", len(prompt))
	}
	if prompt[0].Role != schema.System || prompt[1].Role != schema.User {
		t.Errorf("prompt roles = %s, %s", prompt[0].Role, prompt[1].Role)
	}
	if !strings.Contains(prompt[0].Content, "for the aws cloud provider") {
		t.Error("system prompt missing provider clause")
	}
	wantUser := "Generate Terraform code for aws to create an EC2 instance with a security group."
	if prompt[1].Content != wantUser {
		t.Errorf("user message = %q, want %q", prompt[1].Content, wantUser)
	}
}

func TestGenerateInputGateShortCircuits(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{replies: []string{ec2Reply}}
	store := cache.NewMemory[*Result]()
	svc, err := New(cm, store, nil, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A poisoned cache entry under the greeting's key must never be served:
	// the gate rejects before the cache is consulted.
	store.Put(cache.Key("hello there", "aws"), &Result{Explanation: "poisoned", IsValidRequest: true})

	res, err := svc.Generate(context.Background(), Request{Description: "hello there"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.IsValidRequest {
		t.Error("IsValidRequest = true for a greeting")
	}
	if res.CachedResponse {
		t.Error("CachedResponse = true for a rejected request")
	}
	if res.Explanation != guidanceOffTopic {
		t.Errorf("explanation = %q, want the fixed guidance", res.Explanation)
	}
	if len(res.Files) != 0 {
		t.Errorf("got %d files, want 0", len(res.Files))
	}
	if len(cm.calls) != 0 {
		t.Errorf("model called %d times for a rejected request", len(cm.calls))
	}

	// The entry must be exactly as planted: rejection neither reads nor
	// writes the cache.
	hit, ok := store.Get(cache.Key("hello there", "aws"))
	if !ok || hit.Explanation != "poisoned" {
		t.Error("rejected request touched the cache")
	}

	// The same service accepts a genuine infrastructure request.
	res, err = svc.Generate(context.Background(), Request{Description: "create a vpc with two subnets"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.IsValidRequest {
		t.Error("IsValidRequest = false for an infrastructure request")
	}
	if len(cm.calls) != 1 {
		t.Errorf("model called %d times, want 1", len(cm.calls))
	}
}

func TestGenerateCacheCorrectness(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{replies: []string{ec2Reply, mermaidReply}}
	svc := newService(t, cm, nil, Config{})
	req := Request{Description: "create an EC2 instance with a security group", IncludeDiagram: true}

	first, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	second, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}

	if len(cm.calls) != 2 {
		t.Fatalf("model called %d times, want 2 (no calls on the cache hit)", len(cm.calls))
	}
	if !second.CachedResponse {
		t.Fatal("second result not marked cached")
	}

	want := first.Clone()
	want.CachedResponse = true
	if !reflect.DeepEqual(second, want) {
		t.Errorf("cached result differs beyond the cached_response flag:\ngot  %+v\nwant %+v", second, want)
	}

	// Mutating a returned result must not leak into the cache.
	second.Files[0].Content = "tampered"
	second.Resources[0] = "tampered"
	third, err := svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("third Generate: %v", err)
	}
	if third.Files[0].Content != ec2MainTF {
		t.Error("cache entry mutated through a served result")
	}
	if third.Resources[0] != "aws_instance" {
		t.Error("cached resources mutated through a served result")
	}

	// A different provider is a different key.
	if _, err := svc.Generate(context.Background(), Request{
		Description: "create an EC2 instance with a security group",
		Provider:    "azure",
	}); err != nil {
		t.Fatalf("azure Generate: %v", err)
	}
	if len(cm.calls) != 3 {
		t.Errorf("model called %d times, want 3 after a different-provider miss", len(cm.calls))
	}
}

func TestGenerateNormalizesProvider(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{replies: []string{ec2Reply}}
	svc := newService(t, cm, nil, Config{})

	if _, err := svc.Generate(context.Background(), Request{
		Description: "create an EC2 instance with a security group",
		Provider:    "AWS",
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	res, err := svc.Generate(context.Background(), Request{
		Description: "create an EC2 instance with a security group",
		Provider:    "aws",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.CachedResponse {
		t.Error("provider casing produced a cache miss")
	}
	if len(cm.calls) != 1 {
		t.Errorf("model called %d times, want 1", len(cm.calls))
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	cm := &scriptedModel{err: boom}
	svc := newService(t, cm, nil, Config{Backend: "mistral"})
	req := Request{Description: "deploy a postgres database"}

	res, err := svc.Generate(context.Background(), req)
	if res != nil {
		t.Error("got a result alongside an upstream error")
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error %v is not an UpstreamError", err)
	}
	if ue.Backend != "mistral" {
		t.Errorf("backend = %q, want mistral", ue.Backend)
	}
	if !errors.Is(err, boom) {
		t.Error("upstream cause not reachable through Unwrap")
	}
	if !strings.Contains(err.Error(), "mistral backend call failed") {
		t.Errorf("error = %q", err)
	}

	// A failed generation must not poison the cache: once the backend
	// recovers, the same request is generated fresh.
	cm.err = nil
	cm.replies = []string{ec2Reply}
	res, err = svc.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate after recovery: %v", err)
	}
	if res.CachedResponse {
		t.Error("failed attempt left a cache entry behind")
	}
}

func TestGenerateParserFallback(t *testing.T) {
	t.Parallel()

	raw := `resource "aws_s3_bucket" "logs" {
  bucket = "example-logs"
}`
	cm := &scriptedModel{replies: []string{raw}}
	svc := newService(t, cm, nil, Config{})

	res, err := svc.Generate(context.Background(), Request{Description: "create an s3 bucket for logs"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !res.Diagnostics.ParserFallback {
		t.Error("parser fallback not flagged")
	}
	if !res.Diagnostics.MetadataMissing {
		t.Error("missing metadata not flagged")
	}
	if len(res.Files) != 1 || res.Files[0].Filename != "main.tf" {
		t.Fatalf("files = %+v, want a single main.tf", res.Files)
	}
	if res.Files[0].Content != raw {
		t.Errorf("fallback content = %q", res.Files[0].Content)
	}
	if res.Explanation != "No explanation provided." {
		t.Errorf("explanation = %q", res.Explanation)
	}
	if res.EstimatedCost != "Unknown" {
		t.Errorf("estimated cost = %q", res.EstimatedCost)
	}
	if len(res.Resources) != 0 || res.Resources == nil {
		t.Errorf("resources = %#v, want empty non-nil", res.Resources)
	}
	if want := "terraform-project/\n└── main.tf"; res.FileHierarchy != want {
		t.Errorf("hierarchy = %q, want %q", res.FileHierarchy, want)
	}
}

func TestGenerateMetadataInvalid(t *testing.T) {
	t.Parallel()

	reply := fenced("terraform", "main.tf", ec2MainTF) + "\n\n```json\n{not json at all\n```"
	cm := &scriptedModel{replies: []string{reply}}
	svc := newService(t, cm, nil, Config{})

	res, err := svc.Generate(context.Background(), Request{Description: "deploy an ec2 instance"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Diagnostics.MetadataInvalid {
		t.Error("invalid metadata not flagged")
	}
	if res.Diagnostics.MetadataMissing {
		t.Error("metadata flagged missing when a block was present")
	}
	if len(res.Files) != 1 {
		t.Errorf("got %d files, want 1 — metadata failure must not affect the file pass", len(res.Files))
	}
	if res.EstimatedCost != "Unknown" {
		t.Errorf("estimated cost = %q, want Unknown", res.EstimatedCost)
	}
}

func TestGenerateHierarchySource(t *testing.T) {
	t.Parallel()

	meta := `{"explanation": "x", "resources": [], "estimated_cost": "Low", "file_hierarchy": "my-project/\n└── main.tf"}`
	reply := fenced("terraform", "main.tf", ec2MainTF) + "\n\n" + jsonBlock(meta)
	noTreeMeta := `{"explanation": "x", "resources": [], "estimated_cost": "Low", "file_hierarchy": ""}`
	noTreeReply := fenced("terraform", "main.tf", ec2MainTF) + "\n\n" + jsonBlock(noTreeMeta)

	local := "terraform-project/\n└── main.tf"

	tests := []struct {
		name   string
		source string
		reply  string
		want   string
	}{
		{"local source ignores model tree", HierarchySourceLocal, reply, local},
		{"default source is local", "", reply, local},
		{"model source prefers model tree", HierarchySourceModel, reply, "my-project/\n└── main.tf"},
		{"model source falls back when tree empty", HierarchySourceModel, noTreeReply, local},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cm := &scriptedModel{replies: []string{tc.reply}}
			svc := newService(t, cm, nil, Config{HierarchySource: tc.source})

			res, err := svc.Generate(context.Background(), Request{Description: "deploy an ec2 instance"})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if res.FileHierarchy != tc.want {
				t.Errorf("hierarchy = %q, want %q", res.FileHierarchy, tc.want)
			}
		})
	}
}

func TestGenerateRetrievalContext(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{snippets: []retrieval.Snippet{
		{ID: "1", Content: "aws_instance supports instance_type.", Source: "https://registry.terraform.io/aws_instance", Score: 0.9},
		{ID: "2", Content: "Security groups are stateful.", Source: "https://registry.terraform.io/aws_security_group", Score: 0.8},
	}}
	cm := &scriptedModel{replies: []string{ec2Reply}}
	svc := newService(t, cm, searcher, Config{RetrievalTopK: 3})

	if _, err := svc.Generate(context.Background(), Request{Description: "deploy an ec2 instance"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(searcher.queries) != 1 || searcher.queries[0] != "deploy an ec2 instance" {
		t.Errorf("searcher queries = %v", searcher.queries)
	}
	if searcher.topKs[0] != 3 {
		t.Errorf("topK = %d, want 3", searcher.topKs[0])
	}

	prompt := cm.calls[0]
	if len(prompt) != 3 {
		t.Fatalf("prompt has %d messages, want 3 (instructions, context, user)", len(prompt))
	}
	ref := prompt[1]
	if ref.Role != schema.System {
		t.Errorf("context message role = %s, want system", ref.Role)
	}
	if !strings.Contains(ref.Content, "Relevant Terraform Documentation") {
		t.Error("context message missing section header")
	}
	if !strings.Contains(ref.Content, "### Source 1: https://registry.terraform.io/aws_instance") {
		t.Error("context message missing first source")
	}
	if !strings.Contains(ref.Content, "Security groups are stateful.") {
		t.Error("context message missing second snippet body")
	}
}

func TestGenerateRetrievalFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{err: errors.New("qdrant unreachable")}
	cm := &scriptedModel{replies: []string{ec2Reply}}
	svc := newService(t, cm, searcher, Config{})

	res, err := svc.Generate(context.Background(), Request{Description: "deploy an ec2 instance"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.IsValidRequest {
		t.Error("retrieval failure degraded the request")
	}
	if len(cm.calls[0]) != 2 {
		t.Errorf("prompt has %d messages, want 2 without retrieval context", len(cm.calls[0]))
	}
}

func TestGenerateDiagramPreferenceOnCacheHit(t *testing.T) {
	t.Parallel()

	t.Run("fills from static fallback", func(t *testing.T) {
		t.Parallel()

		cm := &scriptedModel{replies: []string{ec2Reply}}
		svc := newService(t, cm, nil, Config{})
		desc := "create an EC2 instance with a security group"

		first, err := svc.Generate(context.Background(), Request{Description: desc, IncludeDiagram: false})
		if err != nil {
			t.Fatalf("first Generate: %v", err)
		}
		if first.Diagram != nil {
			t.Fatal("diagram present with IncludeDiagram=false")
		}

		second, err := svc.Generate(context.Background(), Request{Description: desc, IncludeDiagram: true})
		if err != nil {
			t.Fatalf("second Generate: %v", err)
		}
		if !second.CachedResponse {
			t.Fatal("second request missed the cache")
		}
		if second.Diagram == nil {
			t.Fatal("diagram still nil when the hit asked for one")
		}
		if !second.Diagnostics.DiagramFallback {
			t.Error("filled diagram not flagged as fallback")
		}
		if len(cm.calls) != 1 {
			t.Errorf("model called %d times, want 1 — the fill must not call the model", len(cm.calls))
		}
	})

	t.Run("strips when not wanted", func(t *testing.T) {
		t.Parallel()

		cm := &scriptedModel{replies: []string{ec2Reply, mermaidReply}}
		svc := newService(t, cm, nil, Config{})
		desc := "create an EC2 instance with a security group"

		if _, err := svc.Generate(context.Background(), Request{Description: desc, IncludeDiagram: true}); err != nil {
			t.Fatalf("first Generate: %v", err)
		}
		second, err := svc.Generate(context.Background(), Request{Description: desc, IncludeDiagram: false})
		if err != nil {
			t.Fatalf("second Generate: %v", err)
		}
		if second.Diagram != nil {
			t.Error("diagram served despite IncludeDiagram=false")
		}
		if second.Diagnostics.DiagramFallback {
			t.Error("diagram fallback flag survived the strip")
		}
	})
}

func TestGenerateValidationIssues(t *testing.T) {
	t.Parallel()

	broken := `resource "aws_instance" "web" {
  ami = "ami-123"`
	reply := fenced("terraform", "main.tf", broken)
	cm := &scriptedModel{replies: []string{reply}}
	svc := newService(t, cm, nil, Config{})

	res, err := svc.Generate(context.Background(), Request{Description: "deploy an ec2 instance"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(res.Diagnostics.ValidationIssues) == 0 {
		t.Fatal("no validation issues for an unclosed block")
	}
	if !strings.HasPrefix(res.Diagnostics.ValidationIssues[0], "main.tf:") {
		t.Errorf("issue = %q, want main.tf: prefix", res.Diagnostics.ValidationIssues[0])
	}
	if len(res.Files) != 1 {
		t.Error("validation findings must not drop the file")
	}
}

// ── Construction and types ───────────────────────────────────────────────

func TestNewValidation(t *testing.T) {
	t.Parallel()

	cm := &scriptedModel{}
	store := cache.NewMemory[*Result]()

	if _, err := New(nil, store, nil, Config{}); err == nil {
		t.Error("nil model accepted")
	}
	if _, err := New(cm, nil, nil, Config{}); err == nil {
		t.Error("nil cache accepted")
	}
	_, err := New(cm, store, nil, Config{HierarchySource: "remote"})
	if err == nil {
		t.Fatal("invalid hierarchy source accepted")
	}
	if !strings.Contains(err.Error(), "valid values") {
		t.Errorf("error = %q", err)
	}
	if _, err := New(cm, store, nil, Config{HierarchySource: HierarchySourceModel}); err != nil {
		t.Errorf("model hierarchy source rejected: %v", err)
	}
}

func TestResultClone(t *testing.T) {
	t.Parallel()

	var missing *Result
	if missing.Clone() != nil {
		t.Error("nil Clone() != nil")
	}

	cm := &scriptedModel{replies: []string{ec2Reply, mermaidReply}}
	svc := newService(t, cm, nil, Config{})
	res, err := svc.Generate(context.Background(), Request{
		Description:    "create an EC2 instance with a security group",
		IncludeDiagram: true,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	clone := res.Clone()
	if !reflect.DeepEqual(clone, res) {
		t.Fatal("clone differs from original")
	}
	clone.Files[0].Content = "tampered"
	clone.Resources[0] = "tampered"
	clone.Diagram.Components[0] = "tampered"
	if res.Files[0].Content == "tampered" || res.Resources[0] == "tampered" || res.Diagram.Components[0] == "tampered" {
		t.Error("clone shares backing arrays with the original")
	}
}

func TestInvalidResultJSONShape(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(invalidResult(guidanceOffTopic))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{
		`"files":[]`,
		`"resources":[]`,
		`"architecture_diagram":null`,
		`"is_valid_request":false`,
		`"cached_response":false`,
		`"estimated_cost":"Unknown"`,
	} {
		if !strings.Contains(string(b), want) {
			t.Errorf("marshaled result missing %s: %s", want, b)
		}
	}
}

func TestDedupeResources(t *testing.T) {
	t.Parallel()

	got := dedupeResources([]string{" aws_instance ", "aws_vpc", "aws_instance", "", "  ", "aws_vpc"})
	want := []string{"aws_instance", "aws_vpc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dedupeResources = %v, want %v", got, want)
	}
	if out := dedupeResources(nil); out == nil || len(out) != 0 {
		t.Errorf("dedupeResources(nil) = %#v, want empty non-nil", out)
	}
}
