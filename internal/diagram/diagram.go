// Package diagram extracts a Mermaid architecture sketch for a generation
// request. The extraction is best-effort: the model is asked for a flowchart,
// the reply is validated and mined for nodes and edges, and anything that
// does not hold up degrades to a small static diagram for the provider.
package diagram

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/terracoder/internal/logging"
)

// ChatModel is the slice of the eino chat model contract this package needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Connection is one directed edge between two diagram components.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Diagram is the parsed architecture sketch returned to API callers.
type Diagram struct {
	Syntax      string       `json:"syntax"`
	Description string       `json:"description"`
	Components  []string     `json:"components"`
	Connections []Connection `json:"connections"`
}

// Mined node and edge lists are capped so a runaway model reply cannot
// inflate the response payload.
const (
	maxComponents  = 10
	maxConnections = 10
)

const defaultEdgeType = "connects_to"

var (
	nodeRe = regexp.MustCompile(`([A-Za-z0-9_]+)\[([^\[\]]+)\]`)
	edgeRe = regexp.MustCompile(`([A-Za-z0-9_]+)(?:\[[^\[\]]*\])?\s*-->\s*(?:\|([^|]*)\|\s*)?([A-Za-z0-9_]+)`)
)

const systemPrompt = `You are an infrastructure architecture assistant. Produce a Mermaid
flowchart that sketches the requested deployment.

Rules:
- Respond with the Mermaid snippet only, no prose and no code fences.
- The first line must be "graph TD" or "graph LR".
- Declare every node as id[Readable Label].
- Connect nodes with -->, optionally annotated as -->|label|.
- Keep it small: at most 10 nodes.`

// Generate asks the model for a Mermaid sketch of the requested deployment
// and parses it into a Diagram. It never fails: any model error or invalid
// reply yields the static fallback for the provider, reported through the
// second return value.
func Generate(ctx context.Context, cm ChatModel, description, provider string, resources []string) (*Diagram, bool) {
	log := logging.FromContext(ctx)

	user := fmt.Sprintf("Describe the architecture for %s on %s.", description, provider)
	if len(resources) > 0 {
		user += "\nTerraform resources in play: " + strings.Join(resources, ", ")
	}

	resp, err := cm.Generate(ctx, []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	})
	if err != nil {
		log.Warn("diagram extraction failed, using static fallback", "provider", provider, "error", err)
		return Fallback(provider), true
	}

	text := stripFence(resp.Content)
	if !valid(text) {
		log.Warn("diagram reply failed validation, using static fallback", "provider", provider)
		return Fallback(provider), true
	}

	return build(text, fmt.Sprintf("Proposed architecture for the requested %s deployment", provider)), false
}

// Fallback returns the hand-built minimal diagram for the provider.
func Fallback(provider string) *Diagram {
	return build(fallbackMermaid(provider), fmt.Sprintf("Static fallback architecture for %s", provider))
}

// valid reports whether text looks like a usable flowchart: one of the two
// accepted headers and at least one edge.
func valid(text string) bool {
	if !strings.HasPrefix(text, "graph TD") && !strings.HasPrefix(text, "graph LR") {
		return false
	}
	return strings.Contains(text, "-->")
}

func build(text, description string) *Diagram {
	labels := make(map[string]string)
	var components []string
	for _, m := range nodeRe.FindAllStringSubmatch(text, -1) {
		id, label := m[1], strings.TrimSpace(m[2])
		if _, ok := labels[id]; !ok {
			labels[id] = label
		}
		if !contains(components, label) && len(components) < maxComponents {
			components = append(components, label)
		}
	}

	var connections []Connection
	for _, line := range strings.Split(text, "\n") {
		for _, m := range edgeRe.FindAllStringSubmatch(line, -1) {
			if len(connections) >= maxConnections {
				break
			}
			edgeType := strings.TrimSpace(m[2])
			if edgeType == "" {
				edgeType = defaultEdgeType
			}
			connections = append(connections, Connection{
				From: resolve(labels, m[1]),
				To:   resolve(labels, m[3]),
				Type: edgeType,
			})
		}
	}

	return &Diagram{
		Syntax:      text,
		Description: description,
		Components:  components,
		Connections: connections,
	}
}

// resolve maps a node id to its declared label, falling back to the id for
// nodes the diagram never labels.
func resolve(labels map[string]string, id string) string {
	if label, ok := labels[id]; ok {
		return label
	}
	return id
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// stripFence removes a surrounding markdown code fence, with or without a
// language tag, from a model reply.
func stripFence(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx >= 0 {
		text = text[idx+1:]
	}
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func fallbackMermaid(provider string) string {
	switch strings.ToLower(provider) {
	case "aws":
		return `graph TD
    User[User] --> ALB[Application Load Balancer]
    ALB --> EC2[EC2 Instance]
    EC2 --> RDS[RDS Database]`
	case "azure":
		return `graph TD
    User[User] --> AG[Application Gateway]
    AG --> VM[Virtual Machine]
    VM --> SQL[Azure SQL Database]`
	case "gcp", "google":
		return `graph TD
    User[User] --> CLB[Cloud Load Balancing]
    CLB --> GCE[Compute Engine]
    GCE --> SQL[Cloud SQL]`
	default:
		return `graph TD
    User[User] --> App[Application]
    App --> DB[Database]`
	}
}
