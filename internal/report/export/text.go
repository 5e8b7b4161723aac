// Package export renders reports as plain text and CSV.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"rcaflow/internal/report/models"
)

const indent = "  "

// WriteText renders r as an indented plain-text document.
func WriteText(w io.Writer, r *models.Report) error {
	bw := bufio.NewWriter(w)
	p := printer{w: bw}

	s := r.Summary
	p.heading("INFORME DE ANÁLISIS DE CAUSA RAÍZ")
	p.field("Evento", s.Title)
	p.field("Sitio", s.Site)
	p.field("Equipo", s.Equipment)
	p.field("Fecha", s.Date)
	p.field("Tipo", s.Type)
	p.field("Prioridad", string(s.Priority))
	p.field("Estado", string(s.Status))
	p.field("Reportado por", s.ReportedBy)
	p.field("Generado", r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	if s.Description != "" {
		p.line(0, "")
		p.line(0, s.Description)
	}

	if len(r.ImmediateActions) > 0 {
		p.heading("ACCIONES INMEDIATAS")
		for _, ia := range r.ImmediateActions {
			p.line(0, fmt.Sprintf("- %s (%s)%s", ia.Description, ia.Responsible, suffix(" ", ia.Date)))
		}
	}

	p.heading("HECHOS")
	p.field("Quién", r.Facts.Who)
	p.field("Qué", r.Facts.What)
	p.field("Dónde", r.Facts.Where)
	p.field("Cuándo", r.Facts.When)
	p.field("Cómo", r.Facts.How)
	p.field("Cuánto", r.Facts.HowMuch)
	for _, ss := range r.Sessions {
		p.line(0, fmt.Sprintf("- Sesión %s: %s", ss.Date, strings.Join(ss.Participants, ", ")))
	}

	if r.Technique.Kind != "" {
		p.heading("TÉCNICA: " + strings.ToUpper(string(r.Technique.Kind)))
		for _, l := range r.Technique.Outline {
			p.line(l.Depth, l.Text)
		}
	}

	p.heading("CAUSAS RAÍZ")
	for i, rc := range r.RootCauses {
		p.line(0, fmt.Sprintf("%d. %s", i+1, rc.Text))
	}

	p.heading("PLAN DE ACCIÓN")
	for i, a := range r.Actions {
		p.line(0, fmt.Sprintf("%d. %s", i+1, a.Description))
		p.line(1, fmt.Sprintf("Responsable: %s  Plazo: %s%s", a.Responsible, a.DueDate, suffix("  ", overdueMark(a.Overdue))))
		p.line(1, "Validación: "+a.Status()+suffix(" - ", validationComment(a)))
		if len(a.RootCauses) > 0 {
			p.line(1, "Causas: "+strings.Join(a.RootCauses, "; "))
		}
		if len(a.Evidences) > 0 {
			p.line(1, "Evidencias: "+strings.Join(a.Evidences, ", "))
		}
	}

	p.heading("RESULTADOS")
	if r.Conclusions != "" {
		p.line(0, r.Conclusions)
	}
	p.field("Evidencias", fmt.Sprint(len(r.Evidences)))
	p.field("Verificación de eficacia", r.Efficacy.DueDate)
	for _, c := range r.Efficacy.Checks {
		verdict := "no eficaz"
		if c.Effective {
			verdict = "eficaz"
		}
		p.line(1, fmt.Sprintf("%s: %s%s", c.VerifiedAt.Format("2006-01-02"), verdict, suffix(" - ", c.Comment)))
	}

	if p.err != nil {
		return p.err
	}
	return bw.Flush()
}

// printer keeps the first write error and ignores the rest.
type printer struct {
	w       *bufio.Writer
	err     error
	started bool
}

func (p *printer) line(depth int, text string) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat(indent, depth), text)
}

func (p *printer) heading(title string) {
	if p.started {
		p.line(0, "")
	}
	p.started = true
	p.line(0, title)
	p.line(0, strings.Repeat("=", len([]rune(title))))
}

// field skips empty values.
func (p *printer) field(label, value string) {
	if value == "" {
		return
	}
	p.line(0, label+": "+value)
}

func suffix(sep, s string) string {
	if s == "" {
		return ""
	}
	return sep + s
}

func overdueMark(overdue bool) string {
	if overdue {
		return "(vencida)"
	}
	return ""
}

func validationComment(a models.Action) string {
	if a.Validation == nil {
		return ""
	}
	return a.Validation.Comment
}
