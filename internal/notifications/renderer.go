package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders notification emails from templates.
type Renderer struct {
	templates map[MessageKind]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"upper":      strings.ToUpper,
		"lower":      strings.ToLower,
		"formatTime": formatTime,
	}

	r := &Renderer{templates: make(map[MessageKind]*template.Template)}

	for _, kind := range []MessageKind{MessageKindInitial, MessageKindUpdate, MessageKindResolved} {
		filename := fmt.Sprintf("templates/email_%s.tmpl", kind)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(kind)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}

		r.templates[kind] = tmpl
	}

	return r, nil
}

// Render renders a payload into an email subject and body.
func (r *Renderer) Render(payload Payload) (subject, body string, err error) {
	tmpl, ok := r.templates[payload.Kind]
	if !ok {
		return "", "", fmt.Errorf("template not found for kind %q", payload.Kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", payload.Kind, err)
	}

	return r.renderSubject(payload), strings.TrimSpace(buf.String()), nil
}

func (r *Renderer) renderSubject(payload Payload) string {
	var prefix string
	switch payload.Kind {
	case MessageKindInitial:
		prefix = "Incident"
	case MessageKindResolved:
		prefix = "Resolved"
	default:
		prefix = "Update"
	}
	return fmt.Sprintf("[%s] %s - %s", payload.OrganizationName, prefix, payload.Title)
}

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(strings.ReplaceAll(s, "_", " "))
}

func formatTime(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 UTC")
}
