// Package ctm implements the cause tree method: failure modes are explained
// by hypotheses, and each hypothesis is broken down into physical, human
// and latent causes.
package ctm

import (
	"slices"
	"strings"

	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	dErrors "rcaflow/pkg/domain-errors"
)

type HypothesisStatus string

const (
	HypothesisPending   HypothesisStatus = "pending"
	HypothesisConfirmed HypothesisStatus = "confirmed"
	HypothesisDiscarded HypothesisStatus = "discarded"
)

func parseStatus(s string) (HypothesisStatus, error) {
	switch st := HypothesisStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case HypothesisPending, HypothesisConfirmed, HypothesisDiscarded:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "status must be pending, confirmed or discarded")
}

type Level string

const (
	LevelPhysical Level = "physical"
	LevelHuman    Level = "human"
	LevelLatent   Level = "latent"
)

func parseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelPhysical, LevelHuman, LevelLatent:
		return l, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "level must be physical, human or latent")
}

const (
	TargetFailureMode = "failureMode"
	TargetHypothesis  = "hypothesis"
	TargetCause       = "cause"
)

type Cause struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Level  Level   `json:"level"`
	Causes []Cause `json:"causes,omitempty"`
}

func causes(c *Cause) *[]Cause { return &c.Causes }

type Hypothesis struct {
	ID     string           `json:"id"`
	Text   string           `json:"text"`
	Status HypothesisStatus `json:"status"`
	Causes []Cause          `json:"causes"`
}

type FailureMode struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Hypotheses []Hypothesis `json:"hypotheses"`
}

type Tree struct {
	FailureModes []FailureMode `json:"failureModes"`
}

func New() *Tree {
	return &Tree{FailureModes: []FailureMode{}}
}

// Apply edits the tree. Paths are [failureMode], [failureMode, hypothesis]
// and [failureMode, hypothesis, cause...].
func (t *Tree) Apply(m technique.Mutation) (tree.Path, error) {
	switch m.Target {
	case TargetFailureMode:
		return t.applyFailureMode(m)
	case TargetHypothesis:
		return t.applyHypothesis(m)
	case TargetCause:
		return t.applyCause(m)
	}
	return nil, technique.UnknownTarget(m.Target)
}

func badPath(p tree.Path, what string) error {
	return dErrors.New(dErrors.CodeInvalidInput, "path "+`"`+p.String()+`"`+" does not address "+what)
}

func (t *Tree) failureMode(p tree.Path) (*FailureMode, error) {
	if len(p) == 0 || p[0] >= len(t.FailureModes) {
		return nil, badPath(p, "a failure mode")
	}
	return &t.FailureModes[p[0]], nil
}

func (t *Tree) hypothesis(p tree.Path) (*Hypothesis, error) {
	fm, err := t.failureMode(p)
	if err != nil {
		return nil, err
	}
	if len(p) < 2 || p[1] >= len(fm.Hypotheses) {
		return nil, badPath(p, "a hypothesis")
	}
	return &fm.Hypotheses[p[1]], nil
}

func (t *Tree) applyFailureMode(m technique.Mutation) (tree.Path, error) {
	switch m.Op {
	case technique.OpAdd:
		if !m.Path.IsRoot() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "failure modes are added at the top level")
		}
		text, err := technique.Text("text", m.Text)
		if err != nil {
			return nil, err
		}
		t.FailureModes = append(t.FailureModes, FailureMode{ID: technique.NewNodeID(), Text: text, Hypotheses: []Hypothesis{}})
		return tree.Path{len(t.FailureModes) - 1}, nil
	case technique.OpUpdate, technique.OpRemove:
		if len(m.Path) != 1 {
			return nil, badPath(m.Path, "a failure mode")
		}
		fm, err := t.failureMode(m.Path)
		if err != nil {
			return nil, err
		}
		if m.Op == technique.OpRemove {
			t.FailureModes = slices.Delete(t.FailureModes, m.Path[0], m.Path[0]+1)
			return m.Path, nil
		}
		if fm.Text, err = technique.Text("text", m.Text); err != nil {
			return nil, err
		}
		return m.Path, nil
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

func (t *Tree) applyHypothesis(m technique.Mutation) (tree.Path, error) {
	switch m.Op {
	case technique.OpAdd:
		if len(m.Path) != 1 {
			return nil, badPath(m.Path, "a failure mode")
		}
		fm, err := t.failureMode(m.Path)
		if err != nil {
			return nil, err
		}
		text, err := technique.Text("text", m.Text)
		if err != nil {
			return nil, err
		}
		h := Hypothesis{ID: technique.NewNodeID(), Text: text, Status: HypothesisPending, Causes: []Cause{}}
		if m.Status != nil {
			if h.Status, err = parseStatus(*m.Status); err != nil {
				return nil, err
			}
		}
		fm.Hypotheses = append(fm.Hypotheses, h)
		return tree.Path{m.Path[0], len(fm.Hypotheses) - 1}, nil
	case technique.OpUpdate:
		if len(m.Path) != 2 {
			return nil, badPath(m.Path, "a hypothesis")
		}
		h, err := t.hypothesis(m.Path)
		if err != nil {
			return nil, err
		}
		if m.Text != nil {
			if h.Text, err = technique.Text("text", m.Text); err != nil {
				return nil, err
			}
		}
		if m.Status != nil {
			if h.Status, err = parseStatus(*m.Status); err != nil {
				return nil, err
			}
		}
		return m.Path, nil
	case technique.OpRemove:
		if len(m.Path) != 2 {
			return nil, badPath(m.Path, "a hypothesis")
		}
		if _, err := t.hypothesis(m.Path); err != nil {
			return nil, err
		}
		fm := &t.FailureModes[m.Path[0]]
		fm.Hypotheses = slices.Delete(fm.Hypotheses, m.Path[1], m.Path[1]+1)
		return m.Path, nil
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

func (t *Tree) applyCause(m technique.Mutation) (tree.Path, error) {
	h, err := t.hypothesis(m.Path)
	if err != nil {
		return nil, err
	}
	prefix := tree.Path{m.Path[0], m.Path[1]}
	inner := m.Path[2:]
	switch m.Op {
	case technique.OpAdd:
		if h.Status == HypothesisDiscarded {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "cannot add causes to a discarded hypothesis")
		}
		text, err := technique.Text("text", m.Text)
		if err != nil {
			return nil, err
		}
		if m.Level == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "level is required")
		}
		level, err := parseLevel(*m.Level)
		if err != nil {
			return nil, err
		}
		p, err := tree.Insert(&h.Causes, inner, Cause{ID: technique.NewNodeID(), Text: text, Level: level}, causes)
		if err != nil {
			return nil, err
		}
		return append(prefix, p...), nil
	case technique.OpUpdate:
		c, err := tree.Get(&h.Causes, inner, causes)
		if err != nil {
			return nil, err
		}
		if m.Text != nil {
			if c.Text, err = technique.Text("text", m.Text); err != nil {
				return nil, err
			}
		}
		if m.Level != nil {
			if c.Level, err = parseLevel(*m.Level); err != nil {
				return nil, err
			}
		}
		return m.Path, nil
	case technique.OpRemove:
		_, err := tree.Remove(&h.Causes, inner, causes)
		return m.Path, err
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

// Candidates returns the latent causes of confirmed hypotheses.
func (t *Tree) Candidates() []technique.Candidate {
	var out []technique.Candidate
	for fi := range t.FailureModes {
		fm := &t.FailureModes[fi]
		for hi := range fm.Hypotheses {
			h := &fm.Hypotheses[hi]
			if h.Status != HypothesisConfirmed {
				continue
			}
			tree.Walk(&h.Causes, causes, func(p tree.Path, c *Cause) bool {
				if c.Level == LevelLatent {
					out = append(out, technique.Candidate{
						NodeID:  c.ID,
						Text:    c.Text,
						Path:    append(tree.Path{fi, hi}, p...).String(),
						Context: fm.Text + " / " + h.Text,
					})
				}
				return true
			})
		}
	}
	return out
}

func (t *Tree) Empty() bool {
	for i := range t.FailureModes {
		if len(t.FailureModes[i].Hypotheses) > 0 {
			return false
		}
	}
	return true
}

var statusLabel = map[HypothesisStatus]string{
	HypothesisPending:   "pendiente",
	HypothesisConfirmed: "confirmada",
	HypothesisDiscarded: "descartada",
}

var levelLabel = map[Level]string{
	LevelPhysical: "física",
	LevelHuman:    "humana",
	LevelLatent:   "latente",
}

func (t *Tree) Outline() []technique.Line {
	var lines []technique.Line
	for fi := range t.FailureModes {
		fm := &t.FailureModes[fi]
		lines = append(lines, technique.Line{Depth: 0, Text: "Modo de falla: " + fm.Text})
		for hi := range fm.Hypotheses {
			h := &fm.Hypotheses[hi]
			lines = append(lines, technique.Line{Depth: 1, Text: "Hipótesis (" + statusLabel[h.Status] + "): " + h.Text})
			tree.Walk(&h.Causes, causes, func(p tree.Path, c *Cause) bool {
				lines = append(lines, technique.Line{Depth: len(p) + 1, Text: "Causa " + levelLabel[c.Level] + ": " + c.Text})
				return true
			})
		}
	}
	return lines
}

func (t *Tree) Find(nodeID string) (string, bool) {
	var text string
	var found bool
	for fi := range t.FailureModes {
		for hi := range t.FailureModes[fi].Hypotheses {
			tree.Walk(&t.FailureModes[fi].Hypotheses[hi].Causes, causes, func(_ tree.Path, c *Cause) bool {
				if c.ID == nodeID {
					text, found = c.Text, true
				}
				return !found
			})
			if found {
				return text, true
			}
		}
	}
	return "", false
}
