// Package models holds the RCA analysis document and its workflow rules.
package models

import (
	"slices"
	"strconv"
	"time"

	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/ctm"
	"rcaflow/internal/analysis/technique/fivewhys"
	"rcaflow/internal/analysis/technique/ishikawa"
	events "rcaflow/internal/events/models"
	id "rcaflow/pkg/domain"
	dErrors "rcaflow/pkg/domain-errors"
)

// Step numbers the six screens of the guided workflow.
type Step int

const (
	StepEvent      Step = 1 // event and immediate actions
	StepFacts      Step = 2 // facts and investigation sessions
	StepTechnique  Step = 3 // analysis technique and root causes
	StepActionPlan Step = 4
	StepValidation Step = 5
	StepResults    Step = 6 // evidences, efficacy, finalization
)

func ParseStep(s string) (Step, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < int(StepEvent) || n > int(StepResults) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "step must be between 1 and 6")
	}
	return Step(n), nil
}

type ImmediateAction struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Responsible string `json:"responsible"`
	Date        string `json:"date,omitempty"`
}

// Facts answer the 5W2H questions of step 2. HowMuch is optional.
type Facts struct {
	Who     string `json:"who"`
	What    string `json:"what"`
	Where   string `json:"where"`
	When    string `json:"when"`
	How     string `json:"how"`
	HowMuch string `json:"howMuch"`
}

type Session struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	Participants []string `json:"participants"`
	Notes        string   `json:"notes,omitempty"`
}

type RootCause struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// SourceNodeID links the cause to the technique node it was promoted
	// from. Empty for causes typed in directly.
	SourceNodeID string         `json:"sourceNodeId,omitempty"`
	Technique    technique.Kind `json:"technique,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type PlannedAction struct {
	ID               string    `json:"id"`
	Description      string    `json:"description"`
	Responsible      string    `json:"responsible"`
	ResponsibleEmail string    `json:"responsibleEmail,omitempty"`
	DueDate          string    `json:"dueDate"`
	RootCauseIDs     []string  `json:"rootCauseIds"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionApproved, DecisionRejected:
		return d, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "decision must be approved or rejected")
}

type Validation struct {
	ActionID      string    `json:"actionId"`
	Decision      Decision  `json:"decision"`
	Comment       string    `json:"comment,omitempty"`
	ValidatedBy   id.UserID `json:"validatedBy"`
	ValidatorName string    `json:"validatorName"`
	ValidatedAt   time.Time `json:"validatedAt"`
}

// Evidence references an uploaded object. The bytes live in object storage
// under ObjectKey.
type Evidence struct {
	ID          id.EvidenceID `json:"id"`
	FileName    string        `json:"fileName"`
	ContentType string        `json:"contentType"`
	Size        int64         `json:"size"`
	SHA256      string        `json:"sha256"`
	ObjectKey   string        `json:"objectKey"`
	ActionID    string        `json:"actionId,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	UploadedBy  id.UserID     `json:"uploadedBy"`
	UploadedAt  time.Time     `json:"uploadedAt"`
}

type EfficacyCheck struct {
	Effective  bool      `json:"effective"`
	Comment    string    `json:"comment"`
	VerifiedBy id.UserID `json:"verifiedBy"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// TechniqueState holds exactly one technique tree, the one named by Kind.
type TechniqueState struct {
	Kind     technique.Kind     `json:"kind,omitempty"`
	Ishikawa *ishikawa.Diagram  `json:"ishikawa,omitempty"`
	FiveWhys *fivewhys.Analysis `json:"fiveWhys,omitempty"`
	CTM      *ctm.Tree          `json:"ctm,omitempty"`
}

func NewTechniqueState(kind technique.Kind) TechniqueState {
	switch kind {
	case technique.KindIshikawa:
		return TechniqueState{Kind: kind, Ishikawa: ishikawa.New()}
	case technique.KindFiveWhys:
		return TechniqueState{Kind: kind, FiveWhys: fivewhys.New()}
	case technique.KindCTM:
		return TechniqueState{Kind: kind, CTM: ctm.New()}
	}
	return TechniqueState{}
}

// Editor returns the active tree, or nil when no technique is selected.
func (t *TechniqueState) Editor() technique.Editor {
	switch {
	case t.Kind == technique.KindIshikawa && t.Ishikawa != nil:
		return t.Ishikawa
	case t.Kind == technique.KindFiveWhys && t.FiveWhys != nil:
		return t.FiveWhys
	case t.Kind == technique.KindCTM && t.CTM != nil:
		return t.CTM
	}
	return nil
}

// Analysis is the RCAAnalysisDocument.
//
// Invariants:
//   - 1 <= CurrentStep <= MaxReachedStep <= 6
//   - every PlannedAction.RootCauseIDs entry names an existing RootCause
//   - every Validation names an existing PlannedAction, at most one each
//   - Finalized implies steps 1 to 5 validate
type Analysis struct {
	ID        id.AnalysisID `json:"id"`
	CompanyID id.CompanyID  `json:"companyId"`
	SiteID    id.SiteID     `json:"siteId"`
	EventID   id.EventID    `json:"eventId"`

	Event            events.Details    `json:"event"`
	ImmediateActions []ImmediateAction `json:"immediateActions"`

	Facts    Facts     `json:"facts"`
	Sessions []Session `json:"sessions"`

	Technique  TechniqueState `json:"technique"`
	RootCauses []RootCause    `json:"rootCauses"`

	Actions     []PlannedAction `json:"actions"`
	Validations []Validation    `json:"validations"`

	Evidences            []Evidence      `json:"evidences"`
	EfficacyChecks       []EfficacyCheck `json:"efficacyChecks"`
	EfficacyDueDate      string          `json:"efficacyDueDate,omitempty"`
	EfficacyReminderSent bool            `json:"efficacyReminderSent"`
	Conclusions          string          `json:"conclusions,omitempty"`

	CurrentStep    Step       `json:"currentStep"`
	MaxReachedStep Step       `json:"maxReachedStep"`
	Finalized      bool       `json:"finalized"`
	FinalizedAt    *time.Time `json:"finalizedAt,omitempty"`

	CreatedBy id.UserID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewAnalysis(analysisID id.AnalysisID, companyID id.CompanyID, eventID id.EventID, event events.Details, by id.UserID, now time.Time) *Analysis {
	return &Analysis{
		ID:               analysisID,
		CompanyID:        companyID,
		SiteID:           event.SiteID,
		EventID:          eventID,
		Event:            event,
		ImmediateActions: []ImmediateAction{},
		Sessions:         []Session{},
		RootCauses:       []RootCause{},
		Actions:          []PlannedAction{},
		Validations:      []Validation{},
		Evidences:        []Evidence{},
		EfficacyChecks:   []EfficacyCheck{},
		CurrentStep:      StepEvent,
		MaxReachedStep:   StepEvent,
		CreatedBy:        by,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (a *Analysis) touch(now time.Time) { a.UpdatedAt = now }

// CanEditStep reports whether step may be saved now.
func (a *Analysis) CanEditStep(step Step) error {
	if a.Finalized && step < StepResults {
		return dErrors.New(dErrors.CodeInvariantViolation, "analysis is finalized")
	}
	if step > a.MaxReachedStep {
		return dErrors.New(dErrors.CodeInvariantViolation, "step "+strconv.Itoa(int(step))+" has not been reached")
	}
	return nil
}

// ClampStep bounds a requested step to what the analysis has reached.
// Zero means the current step.
func (a *Analysis) ClampStep(requested Step) Step {
	switch {
	case requested <= 0:
		return a.CurrentStep
	case requested > a.MaxReachedStep:
		return a.MaxReachedStep
	}
	return requested
}

func (a *Analysis) ApplyEventStep(d events.Details, immediate []ImmediateAction, now time.Time) {
	a.Event = d
	a.SiteID = d.SiteID
	a.ImmediateActions = immediate
	a.CurrentStep = StepEvent
	a.touch(now)
}

func (a *Analysis) ApplyFactsStep(f Facts, sessions []Session, now time.Time) {
	a.Facts = f
	a.Sessions = sessions
	a.CurrentStep = StepFacts
	a.touch(now)
}

func (a *Analysis) ApplyResultsStep(conclusions string, now time.Time) {
	a.Conclusions = conclusions
	a.CurrentStep = StepResults
	a.touch(now)
}

// SelectTechnique switches the technique. A tree with content is only
// discarded when force is set.
func (a *Analysis) SelectTechnique(kind technique.Kind, force bool, now time.Time) error {
	if a.Technique.Kind == kind {
		return nil
	}
	if ed := a.Technique.Editor(); ed != nil && !ed.Empty() && !force {
		return dErrors.New(dErrors.CodeConflict, "changing the technique discards the current tree; retry with force")
	}
	a.Technique = NewTechniqueState(kind)
	a.touch(now)
	return nil
}

func (a *Analysis) RootCause(rootCauseID string) (*RootCause, bool) {
	i := slices.IndexFunc(a.RootCauses, func(rc RootCause) bool { return rc.ID == rootCauseID })
	if i < 0 {
		return nil, false
	}
	return &a.RootCauses[i], true
}

func (a *Analysis) AddRootCause(rc RootCause, now time.Time) error {
	if rc.SourceNodeID != "" && slices.ContainsFunc(a.RootCauses, func(x RootCause) bool { return x.SourceNodeID == rc.SourceNodeID }) {
		return dErrors.New(dErrors.CodeConflict, "node is already a root cause")
	}
	a.RootCauses = append(a.RootCauses, rc)
	a.touch(now)
	return nil
}

// RemoveRootCause deletes the cause and strips it from every planned action.
func (a *Analysis) RemoveRootCause(rootCauseID string, now time.Time) error {
	if _, ok := a.RootCause(rootCauseID); !ok {
		return dErrors.New(dErrors.CodeNotFound, "root cause not found")
	}
	a.RootCauses = slices.DeleteFunc(a.RootCauses, func(rc RootCause) bool { return rc.ID == rootCauseID })
	for i := range a.Actions {
		a.Actions[i].RootCauseIDs = slices.DeleteFunc(a.Actions[i].RootCauseIDs, func(s string) bool { return s == rootCauseID })
	}
	a.touch(now)
	return nil
}

func (a *Analysis) Action(actionID string) (*PlannedAction, bool) {
	i := slices.IndexFunc(a.Actions, func(pa PlannedAction) bool { return pa.ID == actionID })
	if i < 0 {
		return nil, false
	}
	return &a.Actions[i], true
}

// CheckRootCauseRefs reports root cause ids that do not exist.
func (a *Analysis) CheckRootCauseRefs(ids []string) error {
	for _, rcID := range ids {
		if _, ok := a.RootCause(rcID); !ok {
			return dErrors.WithFields(dErrors.CodeValidation, "unknown root cause",
				[]dErrors.FieldError{{Field: "rootCauseIds", Message: "unknown root cause " + rcID}})
		}
	}
	return nil
}

func (a *Analysis) AddAction(pa PlannedAction, now time.Time) error {
	if err := a.CheckRootCauseRefs(pa.RootCauseIDs); err != nil {
		return err
	}
	a.Actions = append(a.Actions, pa)
	a.touch(now)
	return nil
}

// UpdateAction replaces the action's content. A changed action has to be
// validated again, so its validation is dropped.
func (a *Analysis) UpdateAction(pa PlannedAction, now time.Time) error {
	current, ok := a.Action(pa.ID)
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "planned action not found")
	}
	if err := a.CheckRootCauseRefs(pa.RootCauseIDs); err != nil {
		return err
	}
	pa.CreatedAt = current.CreatedAt
	pa.UpdatedAt = now
	*current = pa
	a.dropValidation(pa.ID)
	a.touch(now)
	return nil
}

// RemoveAction deletes the action together with its validation.
func (a *Analysis) RemoveAction(actionID string, now time.Time) error {
	if _, ok := a.Action(actionID); !ok {
		return dErrors.New(dErrors.CodeNotFound, "planned action not found")
	}
	a.Actions = slices.DeleteFunc(a.Actions, func(pa PlannedAction) bool { return pa.ID == actionID })
	a.dropValidation(actionID)
	a.touch(now)
	return nil
}

func (a *Analysis) dropValidation(actionID string) {
	a.Validations = slices.DeleteFunc(a.Validations, func(v Validation) bool { return v.ActionID == actionID })
}

func (a *Analysis) ValidationFor(actionID string) (*Validation, bool) {
	i := slices.IndexFunc(a.Validations, func(v Validation) bool { return v.ActionID == actionID })
	if i < 0 {
		return nil, false
	}
	return &a.Validations[i], true
}

// CanValidate reports whether action decisions may be recorded.
func (a *Analysis) CanValidate(actionID string) error {
	if a.Finalized {
		return dErrors.New(dErrors.CodeInvariantViolation, "analysis is finalized")
	}
	if a.MaxReachedStep < StepValidation {
		return dErrors.New(dErrors.CodeInvariantViolation, "the action plan has not been submitted for validation")
	}
	if _, ok := a.Action(actionID); !ok {
		return dErrors.New(dErrors.CodeNotFound, "planned action not found")
	}
	return nil
}

// ApplyValidation records the decision. A rejection sends the analysis
// back to the action plan.
func (a *Analysis) ApplyValidation(v Validation, now time.Time) {
	a.dropValidation(v.ActionID)
	a.Validations = append(a.Validations, v)
	if v.Decision == DecisionRejected {
		a.reopenActionPlan()
	}
	a.touch(now)
}

func (a *Analysis) reopenActionPlan() {
	a.CurrentStep = StepActionPlan
	a.MaxReachedStep = StepActionPlan
}

// CanAdvance checks that every step up to the current one validates.
func (a *Analysis) CanAdvance() error {
	if a.Finalized {
		return dErrors.New(dErrors.CodeInvariantViolation, "analysis is finalized")
	}
	if a.CurrentStep >= StepResults {
		return dErrors.New(dErrors.CodeInvariantViolation, "analysis is already at the last step")
	}
	return a.ValidateThrough(a.CurrentStep)
}

// ApplyAdvance moves to the next step. Call CanAdvance first.
func (a *Analysis) ApplyAdvance(now time.Time) {
	a.CurrentStep++
	a.MaxReachedStep = max(a.MaxReachedStep, a.CurrentStep)
	a.touch(now)
}

func (a *Analysis) CanFinalize() error {
	if a.Finalized {
		return dErrors.New(dErrors.CodeInvariantViolation, "analysis is already finalized")
	}
	if a.MaxReachedStep < StepResults {
		return dErrors.New(dErrors.CodeInvariantViolation, "analysis has not reached the results step")
	}
	return a.ValidateThrough(StepValidation)
}

// ApplyFinalize closes the analysis. dueDate is when efficacy should be
// verified.
func (a *Analysis) ApplyFinalize(dueDate string, now time.Time) {
	a.Finalized = true
	a.FinalizedAt = &now
	a.CurrentStep = StepResults
	a.EfficacyDueDate = dueDate
	a.EfficacyReminderSent = false
	a.touch(now)
}

func (a *Analysis) CanVerifyEfficacy() error {
	if !a.Finalized {
		return dErrors.New(dErrors.CodeInvariantViolation, "only finalized analyses can be verified")
	}
	if n := len(a.EfficacyChecks); n > 0 && a.EfficacyChecks[n-1].Effective {
		return dErrors.New(dErrors.CodeInvariantViolation, "efficacy is already verified")
	}
	return nil
}

// ApplyEfficacy records the check. Not effective reopens the action plan.
func (a *Analysis) ApplyEfficacy(check EfficacyCheck, now time.Time) {
	a.EfficacyChecks = append(a.EfficacyChecks, check)
	if !check.Effective {
		a.Finalized = false
		a.FinalizedAt = nil
		a.EfficacyDueDate = ""
		a.reopenActionPlan()
	}
	a.touch(now)
}

// EfficacyVerified reports whether the last check found the actions effective.
func (a *Analysis) EfficacyVerified() bool {
	n := len(a.EfficacyChecks)
	return n > 0 && a.EfficacyChecks[n-1].Effective
}

// EfficacyDue reports whether a reminder should go out on date today.
func (a *Analysis) EfficacyDue(today string) bool {
	return a.Finalized && !a.EfficacyVerified() && !a.EfficacyReminderSent &&
		a.EfficacyDueDate != "" && a.EfficacyDueDate <= today
}

func (a *Analysis) AddEvidence(e Evidence, now time.Time) error {
	if e.ActionID != "" {
		if _, ok := a.Action(e.ActionID); !ok {
			return dErrors.WithFields(dErrors.CodeValidation, "unknown planned action",
				[]dErrors.FieldError{{Field: "actionId", Message: "unknown planned action"}})
		}
	}
	a.Evidences = append(a.Evidences, e)
	a.touch(now)
	return nil
}

func (a *Analysis) Evidence(evidenceID id.EvidenceID) (*Evidence, bool) {
	i := slices.IndexFunc(a.Evidences, func(e Evidence) bool { return e.ID == evidenceID })
	if i < 0 {
		return nil, false
	}
	return &a.Evidences[i], true
}

func (a *Analysis) RemoveEvidence(evidenceID id.EvidenceID, now time.Time) error {
	if _, ok := a.Evidence(evidenceID); !ok {
		return dErrors.New(dErrors.CodeNotFound, "evidence not found")
	}
	a.Evidences = slices.DeleteFunc(a.Evidences, func(e Evidence) bool { return e.ID == evidenceID })
	a.touch(now)
	return nil
}

// OverdueActions returns the planned actions due before today. Finalized
// analyses have none.
func (a *Analysis) OverdueActions(today string) []PlannedAction {
	if a.Finalized {
		return nil
	}
	var out []PlannedAction
	for _, pa := range a.Actions {
		if pa.DueDate != "" && pa.DueDate < today {
			out = append(out, pa)
		}
	}
	return out
}
