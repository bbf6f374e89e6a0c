// Package render turns dispatch decisions into chat message text.
package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/approval-bridge/internal/domain/workflow"
)

//go:embed messages.yaml
var defaultMessages []byte

const fallbackKey = "default"

var (
	leadingIndent = regexp.MustCompile(`^\x20+`)
	lineIndent    = regexp.MustCompile(`\n\x20+`)
)

// MessageData is the template input for one recipient.
type MessageData struct {
	// Nickname is the submitter for reviewers and notifiers, the acting approver for submitters.
	Nickname    string
	ProcDefName string
	Department  string
	Type        string
	StartTime   string
	EndTime     string
	Description string
	StatusLabel string
	Comment     string
	Transition  workflow.Transition
}

// Catalog holds parsed message templates.
type Catalog struct {
	templates map[workflow.Role]map[string]*template.Template
}

// LoadCatalog reads templates from path, or the built-in set when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultMessages)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message templates: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML template document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message templates: %w", err)
	}

	c := &Catalog{templates: make(map[workflow.Role]map[string]*template.Template)}
	for role, entries := range raw {
		parsed := make(map[string]*template.Template, len(entries))
		for key, body := range entries {
			tmpl, err := template.New(role + "." + key).Parse(body)
			if err != nil {
				return nil, fmt.Errorf("failed to parse template %s.%s: %w", role, key, err)
			}
			parsed[key] = tmpl
		}
		c.templates[workflow.Role(role)] = parsed
	}
	return c, nil
}

// Render executes the template for role and transition and normalizes indentation.
func (c *Catalog) Render(role workflow.Role, t workflow.Transition, data MessageData) (string, error) {
	entries, ok := c.templates[role]
	if !ok {
		return "", fmt.Errorf("no templates for role %s", role)
	}
	tmpl, ok := entries[t.String()]
	if !ok {
		if tmpl, ok = entries[fallbackKey]; !ok {
			return "", fmt.Errorf("no template for %s.%s", role, t)
		}
	}

	data.Transition = t
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return NormalizeIndent(buf.String()), nil
}

// NormalizeIndent strips spaces at the start of the text and after every newline.
func NormalizeIndent(s string) string {
	s = leadingIndent.ReplaceAllString(s, "")
	return lineIndent.ReplaceAllString(s, "\n")
}
