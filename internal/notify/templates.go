package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	tmplEventReported       = "event_reported.html"
	tmplValidationRequested = "validation_requested.html"
	tmplActionRejected      = "action_rejected.html"
	tmplAnalysisFinalized   = "analysis_finalized.html"
	tmplEfficacyDue         = "efficacy_due.html"
)

// view is the data every template receives.
type view struct {
	RecipientName string
	Title         string
	Site          string
	Link          string
	Fields        map[string]string
}

func render(name string, v view) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, v); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
