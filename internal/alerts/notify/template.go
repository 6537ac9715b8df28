package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Rockfall Alert {{.Severity}}]
{{.Message}}
Risk Level: {{.RiskLevel}} ({{.RiskDescription}})
Location: {{.Location}}
Confidence: {{.Confidence}}
Assessed At: {{.AssessedAt}}
{{ if .Factors }}Contributing Factors: {{.Factors}}
{{ end }}Suggestion: {{.Suggestion}}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Severity        string
	Message         string
	RiskLevel       string
	RiskDescription string
	Location        string
	Confidence      string
	AssessedAt      string
	Factors         string
	Suggestion      string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
