package ingestion

import (
	"net/url"
	"strings"
)

// InferredMetadata holds the provider, resource type, and doc type inferred
// from a documentation URL's structure. CLI flags take precedence over
// inferred values — this is the best-effort fallback when the user doesn't
// specify explicit metadata.
type InferredMetadata struct {
	// Provider is the cloud provider label (aws, azure, gcp, kubernetes, generic).
	Provider string
	// ResourceType is the Terraform resource type the page documents
	// (e.g. "aws_eks_cluster"), when the URL names one.
	ResourceType string
	// DocType classifies the documentation kind (reference, tutorial, guide, api).
	DocType string
}

// registryProviderAliases maps the Terraform provider namespace used in
// registry URLs to our canonical short label.
var registryProviderAliases = map[string]string{
	"aws":         "aws",
	"azurerm":     "azure",
	"azuread":     "azure",
	"google":      "gcp",
	"google-beta": "gcp",
	"kubernetes":  "kubernetes",
	"helm":        "kubernetes",
	"random":      "generic",
	"null":        "generic",
	"local":       "generic",
	"tls":         "generic",
	"archive":     "generic",
	"template":    "generic",
	"http":        "generic",
}

// InferMetadata inspects the documentation source URL and returns best-effort
// metadata. If the URL doesn't match any known pattern the returned fields
// contain sensible defaults ("generic", "reference").
//
// Supported URL patterns:
//
//	registry.terraform.io/providers/{org}/{provider}/...
//	developer.hashicorp.com/terraform/tutorials/...
//	developer.hashicorp.com/terraform/language/...
func InferMetadata(rawURL string) InferredMetadata {
	m := InferredMetadata{
		Provider: "generic",
		DocType:  "reference",
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return m
	}

	host := strings.ToLower(parsed.Hostname())
	path := strings.ToLower(parsed.Path)
	segments := trimSegments(path)

	switch host {
	case "registry.terraform.io":
		inferRegistry(segments, &m)

	case "developer.hashicorp.com":
		inferHashiCorpDeveloper(segments, &m)
	}

	return m
}

// inferRegistry handles registry.terraform.io/providers/{org}/{name}/...
func inferRegistry(segments []string, m *InferredMetadata) {
	// Expected path: providers / {org} / {name} / latest / docs / ...
	if len(segments) < 3 || segments[0] != "providers" {
		return
	}

	providerName := segments[2] // e.g. "aws", "azurerm", "google"
	if alias, ok := registryProviderAliases[providerName]; ok {
		m.Provider = alias
	} else {
		m.Provider = providerName
	}

	// Detect doc type and resource type from deeper path segments. Resource
	// type names on the registry drop the provider prefix, so it is restored
	// here: .../aws/latest/docs/resources/eks_cluster → aws_eks_cluster.
	for i, seg := range segments {
		switch seg {
		case "guides":
			m.DocType = "guide"
			return
		case "resources", "data-sources":
			m.DocType = "reference"
			if i+1 < len(segments) {
				m.ResourceType = providerName + "_" + segments[i+1]
			}
			return
		}
	}
}

// inferHashiCorpDeveloper handles developer.hashicorp.com/terraform/...
func inferHashiCorpDeveloper(segments []string, m *InferredMetadata) {
	if len(segments) < 2 || segments[0] != "terraform" {
		return
	}
	switch segments[1] {
	case "tutorials":
		m.DocType = "tutorial"
	case "language", "cli", "internals":
		m.DocType = "reference"
	case "plugin":
		m.DocType = "api"
	}
}

// trimSegments splits a URL path into non-empty lowercase segments.
func trimSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
