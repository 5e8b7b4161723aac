package models

import (
	"fmt"
	"strconv"
	"strings"

	"rcaflow/internal/analysis/technique"
	events "rcaflow/internal/events/models"
	dErrors "rcaflow/pkg/domain-errors"
)

// ValidateStep returns the field errors that keep step from being complete.
// An empty result means the step validates.
func (a *Analysis) ValidateStep(step Step) []dErrors.FieldError {
	switch step {
	case StepEvent:
		return a.validateEvent()
	case StepFacts:
		return a.validateFacts()
	case StepTechnique:
		return a.validateTechnique()
	case StepActionPlan:
		return a.validateActionPlan()
	case StepValidation:
		return a.validateDecisions()
	}
	return nil
}

// ValidateThrough validates steps 1..last and reports every failing field,
// prefixed with its step ("step2.who").
func (a *Analysis) ValidateThrough(last Step) error {
	var all []dErrors.FieldError
	var first Step
	for step := StepEvent; step <= last; step++ {
		fields := a.ValidateStep(step)
		if len(fields) > 0 && first == 0 {
			first = step
		}
		for _, f := range fields {
			all = append(all, dErrors.FieldError{Field: "step" + strconv.Itoa(int(step)) + "." + f.Field, Message: f.Message})
		}
	}
	if len(all) > 0 {
		return dErrors.WithFields(dErrors.CodeValidation, fmt.Sprintf("step %d is incomplete", first), all)
	}
	return nil
}

func required(field string) dErrors.FieldError {
	return dErrors.FieldError{Field: field, Message: "required"}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func (a *Analysis) validateEvent() []dErrors.FieldError {
	d := a.Event
	fields := dErrors.FieldsOf(d.Validate())
	for i, ia := range a.ImmediateActions {
		if blank(ia.Description) {
			fields = append(fields, required(fmt.Sprintf("immediateActions[%d].description", i)))
		}
		if blank(ia.Responsible) {
			fields = append(fields, required(fmt.Sprintf("immediateActions[%d].responsible", i)))
		}
	}
	return fields
}

func (a *Analysis) validateFacts() []dErrors.FieldError {
	var fields []dErrors.FieldError
	for _, f := range []struct{ name, value string }{
		{"who", a.Facts.Who},
		{"what", a.Facts.What},
		{"where", a.Facts.Where},
		{"when", a.Facts.When},
		{"how", a.Facts.How},
	} {
		if blank(f.value) {
			fields = append(fields, required("facts."+f.name))
		}
	}
	for i, s := range a.Sessions {
		if _, err := events.ParseDate(s.Date); err != nil {
			fields = append(fields, dErrors.FieldError{Field: fmt.Sprintf("sessions[%d].date", i), Message: "must be YYYY-MM-DD"})
		}
		if !hasParticipant(s.Participants) {
			fields = append(fields, dErrors.FieldError{Field: fmt.Sprintf("sessions[%d].participants", i), Message: "at least one participant"})
		}
	}
	return fields
}

func hasParticipant(names []string) bool {
	for _, n := range names {
		if !blank(n) {
			return true
		}
	}
	return false
}

var emptyTree = map[technique.Kind]string{
	technique.KindIshikawa: "add at least one cause",
	technique.KindFiveWhys: "add at least one because",
	technique.KindCTM:      "add at least one hypothesis",
}

func (a *Analysis) validateTechnique() []dErrors.FieldError {
	var fields []dErrors.FieldError
	ed := a.Technique.Editor()
	switch {
	case ed == nil:
		fields = append(fields, dErrors.FieldError{Field: "technique", Message: "select a technique"})
	case ed.Empty():
		fields = append(fields, dErrors.FieldError{Field: "technique", Message: emptyTree[a.Technique.Kind]})
	}
	if len(a.RootCauses) == 0 {
		fields = append(fields, dErrors.FieldError{Field: "rootCauses", Message: "identify at least one root cause"})
	}
	return fields
}

func (a *Analysis) validateActionPlan() []dErrors.FieldError {
	if len(a.Actions) == 0 {
		return []dErrors.FieldError{{Field: "actions", Message: "add at least one planned action"}}
	}
	var fields []dErrors.FieldError
	for i, pa := range a.Actions {
		prefix := fmt.Sprintf("actions[%d].", i)
		if blank(pa.Description) {
			fields = append(fields, required(prefix+"description"))
		}
		if blank(pa.Responsible) {
			fields = append(fields, required(prefix+"responsible"))
		}
		if _, err := events.ParseDate(pa.DueDate); err != nil {
			fields = append(fields, dErrors.FieldError{Field: prefix + "dueDate", Message: "must be YYYY-MM-DD"})
		}
		if len(pa.RootCauseIDs) == 0 {
			fields = append(fields, dErrors.FieldError{Field: prefix + "rootCauseIds", Message: "link at least one root cause"})
		}
		for _, rcID := range pa.RootCauseIDs {
			if _, ok := a.RootCause(rcID); !ok {
				fields = append(fields, dErrors.FieldError{Field: prefix + "rootCauseIds", Message: "unknown root cause " + rcID})
			}
		}
	}
	return fields
}

func (a *Analysis) validateDecisions() []dErrors.FieldError {
	var fields []dErrors.FieldError
	for i, pa := range a.Actions {
		v, ok := a.ValidationFor(pa.ID)
		switch {
		case !ok:
			fields = append(fields, dErrors.FieldError{Field: fmt.Sprintf("actions[%d].validation", i), Message: "pending validation"})
		case v.Decision == DecisionRejected:
			fields = append(fields, dErrors.FieldError{Field: fmt.Sprintf("actions[%d].validation", i), Message: "rejected"})
		}
	}
	return fields
}
