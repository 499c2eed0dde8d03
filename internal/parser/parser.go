// Package parser turns one raw LLM response into an ordered list of
// (filename, content) pairs plus a decoded metadata envelope. The grammar is
// implemented permissively: the upstream generator does not always comply
// exactly, so every malformed-output path is recovered locally rather than
// surfaced as an error.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// File is one extracted artifact before classification.
type File struct {
	// Name is the cleaned relative filename (may contain "/").
	Name string
	// Content is the trimmed file body.
	Content string
}

// Metadata is the JSON envelope the model is asked to append after the file
// blocks. Absent or malformed metadata decodes to the zero value.
type Metadata struct {
	// Explanation is the model's summary of the generated configuration.
	Explanation string `json:"explanation"`
	// Resources lists the resource types the model claims to have generated.
	Resources []string `json:"resources"`
	// EstimatedCost is a free-form label ("Low", "Medium", "High", "Varies").
	EstimatedCost string `json:"estimated_cost"`
	// FileHierarchy is the model's own rendering of the project tree.
	FileHierarchy string `json:"file_hierarchy"`
}

// ErrNoMetadata reports that the response carried no ```json block at all.
// Callers distinguish it from a malformed block with errors.Is.
var ErrNoMetadata = errors.New("parser: no metadata block in response")

// Output is the complete parse result. Parse never fails: degraded input is
// reported through Fallback and MetaErr instead of an error return.
type Output struct {
	// Files holds the extracted files in first-seen order.
	Files []File
	// Meta is the decoded metadata envelope (zero value when absent/invalid).
	Meta Metadata
	// Fallback is true when no labeled block matched and the whole response
	// was captured as a single main.tf.
	Fallback bool
	// MetaErr is nil on a clean metadata decode, ErrNoMetadata when the block
	// is absent, or the wrapped decode error when the block is malformed.
	MetaErr error
}

// fileBlockRe matches one labeled fenced block: ``` + language token + ":" +
// filename (rest of line) + newline + non-greedy body + closing fence.
var fileBlockRe = regexp.MustCompile("(?s)```([^:\\s`]+):([^\n]*)\n(.*?)```")

// jsonBlockRe matches the first ```json fenced block.
var jsonBlockRe = regexp.MustCompile("(?s)```json\\s*\n(.*?)```")

// Parse extracts file blocks and metadata from a raw model response.
//
// The file pass and the metadata pass are independent: a malformed files
// section never prevents metadata from being read, and vice versa. The
// returned file order is the order blocks appear in the text.
func Parse(raw string) Output {
	var out Output

	matches := fileBlockRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		// Zero labeled blocks — the whole response becomes main.tf.
		out.Fallback = true
		if content := fallbackContent(raw); content != "" {
			out.Files = append(out.Files, File{Name: "main.tf", Content: content})
		}
	} else {
		for _, m := range matches {
			name := cleanFilename(m[2])
			content := strings.TrimSpace(m[3])
			// Stub blocks with no content (or no usable name) are dropped
			// silently; the model sometimes emits them.
			if name == "" || content == "" {
				continue
			}
			out.Files = append(out.Files, File{Name: name, Content: content})
		}
	}

	out.Meta, out.MetaErr = parseMetadata(raw)
	return out
}

// parseMetadata decodes the first ```json block. A missing block yields
// ErrNoMetadata; a malformed one yields the wrapped decode error. Both cases
// return the zero Metadata — the caller applies defaults.
func parseMetadata(raw string) (Metadata, error) {
	m := jsonBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return Metadata{}, ErrNoMetadata
	}

	var meta Metadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &meta); err != nil {
		return Metadata{}, fmt.Errorf("parser: invalid metadata JSON: %w", err)
	}
	return meta, nil
}

// cleanFilename strips artifacts of model non-compliance from a captured
// filename: stray fence backticks and a leading literal "File:" label.
func cleanFilename(name string) string {
	name = strings.ReplaceAll(name, "`", "")
	name = strings.TrimSpace(name)
	for _, label := range []string{"File:", "file:"} {
		if rest, ok := strings.CutPrefix(name, label); ok {
			name = strings.TrimSpace(rest)
			break
		}
	}
	return name
}

// fallbackContent recovers the single-file body for the zero-match case. A
// generic ```terraform (or bare ```) fence pair is stripped when present;
// otherwise the trimmed response is returned as-is.
func fallbackContent(raw string) string {
	if i := strings.Index(raw, "```terraform"); i >= 0 {
		rest := raw[i+len("```terraform"):]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		if nl := strings.Index(trimmed, "\n"); nl >= 0 {
			trimmed = trimmed[nl+1:]
		} else {
			return ""
		}
		if j := strings.Index(trimmed, "```"); j >= 0 {
			trimmed = trimmed[:j]
		}
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
