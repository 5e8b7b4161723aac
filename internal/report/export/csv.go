package export

import (
	"encoding/csv"
	"io"
	"strings"

	"rcaflow/internal/report/models"
)

var actionHeader = []string{
	"id", "description", "responsible", "responsible_email", "due_date",
	"overdue", "root_causes", "validation", "validation_comment", "validated_by", "evidences",
}

// WriteActionsCSV writes one row per planned action.
func WriteActionsCSV(w io.Writer, r *models.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(actionHeader); err != nil {
		return err
	}
	for _, a := range r.Actions {
		var comment, by string
		if a.Validation != nil {
			comment, by = a.Validation.Comment, a.Validation.ValidatorName
		}
		overdue := "no"
		if a.Overdue {
			overdue = "yes"
		}
		row := []string{
			a.ID,
			a.Description,
			a.Responsible,
			a.ResponsibleEmail,
			a.DueDate,
			overdue,
			strings.Join(a.RootCauses, "; "),
			a.Status(),
			comment,
			by,
			strings.Join(a.Evidences, "; "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
