// Package fivewhys implements the 5 Whys technique. Each entry states a
// problem and asks a first why; every answer ("because") may open a deeper
// why with its own answers.
package fivewhys

import (
	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	dErrors "rcaflow/pkg/domain-errors"
)

// MaxDepth bounds the number of why levels below an entry.
const MaxDepth = 5

const (
	TargetEntry   = "entry"
	TargetBecause = "because"
)

type Because struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	RootCause bool   `json:"rootCause"`
	// Question is the next why asked about this answer.
	Question string    `json:"question,omitempty"`
	Becauses []Because `json:"becauses,omitempty"`
}

func becauses(b *Because) *[]Because { return &b.Becauses }

type Entry struct {
	ID       string    `json:"id"`
	Problem  string    `json:"problem"`
	Question string    `json:"question"`
	Becauses []Because `json:"becauses"`
}

type Analysis struct {
	Entries []Entry `json:"entries"`
}

func New() *Analysis {
	return &Analysis{Entries: []Entry{}}
}

// Apply edits the analysis. Entry paths have one index; because paths start
// with the entry index followed by the path among its answers.
func (a *Analysis) Apply(m technique.Mutation) (tree.Path, error) {
	switch m.Target {
	case TargetEntry:
		return a.applyEntry(m)
	case TargetBecause:
		return a.applyBecause(m)
	}
	return nil, technique.UnknownTarget(m.Target)
}

func (a *Analysis) applyEntry(m technique.Mutation) (tree.Path, error) {
	switch m.Op {
	case technique.OpAdd:
		if !m.Path.IsRoot() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "entries are added at the top level")
		}
		problem, err := technique.Text("problem", m.Text)
		if err != nil {
			return nil, err
		}
		e := Entry{ID: technique.NewNodeID(), Problem: problem, Becauses: []Because{}}
		if m.Question != nil {
			if e.Question, err = technique.OptionalText("question", *m.Question); err != nil {
				return nil, err
			}
		}
		a.Entries = append(a.Entries, e)
		return tree.Path{len(a.Entries) - 1}, nil
	case technique.OpUpdate:
		e, err := a.entry(m.Path, true)
		if err != nil {
			return nil, err
		}
		if m.Text != nil {
			if e.Problem, err = technique.Text("problem", m.Text); err != nil {
				return nil, err
			}
		}
		if m.Question != nil {
			if e.Question, err = technique.OptionalText("question", *m.Question); err != nil {
				return nil, err
			}
		}
		return m.Path, nil
	case technique.OpRemove:
		if _, err := a.entry(m.Path, true); err != nil {
			return nil, err
		}
		a.Entries = append(a.Entries[:m.Path[0]], a.Entries[m.Path[0]+1:]...)
		return m.Path, nil
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

func (a *Analysis) entry(p tree.Path, exact bool) (*Entry, error) {
	if len(p) == 0 || (exact && len(p) != 1) || p[0] >= len(a.Entries) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "path "+`"`+p.String()+`"`+" does not address an entry")
	}
	return &a.Entries[p[0]], nil
}

func (a *Analysis) applyBecause(m technique.Mutation) (tree.Path, error) {
	e, err := a.entry(m.Path, false)
	if err != nil {
		return nil, err
	}
	inner := m.Path[1:]
	switch m.Op {
	case technique.OpAdd:
		if len(inner)+1 > MaxDepth {
			return nil, dErrors.New(dErrors.CodeValidation, "5 Whys is limited to 5 levels")
		}
		text, err := technique.Text("text", m.Text)
		if err != nil {
			return nil, err
		}
		b := Because{ID: technique.NewNodeID(), Text: text}
		if m.RootCause != nil {
			b.RootCause = *m.RootCause
		}
		p, err := tree.Insert(&e.Becauses, inner, b, becauses)
		if err != nil {
			return nil, err
		}
		return append(tree.Path{m.Path[0]}, p...), nil
	case technique.OpUpdate:
		b, err := tree.Get(&e.Becauses, inner, becauses)
		if err != nil {
			return nil, err
		}
		if m.Text != nil {
			if b.Text, err = technique.Text("text", m.Text); err != nil {
				return nil, err
			}
		}
		if m.Question != nil {
			if b.Question, err = technique.OptionalText("question", *m.Question); err != nil {
				return nil, err
			}
		}
		if m.RootCause != nil {
			b.RootCause = *m.RootCause
		}
		return m.Path, nil
	case technique.OpRemove:
		_, err := tree.Remove(&e.Becauses, inner, becauses)
		return m.Path, err
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

// Candidates returns, per entry, the becauses flagged as root cause or,
// when none is flagged, the leaves of the deepest level reached.
func (a *Analysis) Candidates() []technique.Candidate {
	var out []technique.Candidate
	for ei := range a.Entries {
		e := &a.Entries[ei]
		var flagged, deepest []technique.Candidate
		maxDepth := 0
		tree.Walk(&e.Becauses, becauses, func(p tree.Path, b *Because) bool {
			c := technique.Candidate{
				NodeID:  b.ID,
				Text:    b.Text,
				Path:    append(tree.Path{ei}, p...).String(),
				Context: e.Problem,
			}
			if b.RootCause {
				flagged = append(flagged, c)
			}
			if tree.IsLeaf(b, becauses) {
				switch {
				case len(p) > maxDepth:
					maxDepth = len(p)
					deepest = []technique.Candidate{c}
				case len(p) == maxDepth:
					deepest = append(deepest, c)
				}
			}
			return true
		})
		if len(flagged) > 0 {
			out = append(out, flagged...)
		} else {
			out = append(out, deepest...)
		}
	}
	return out
}

func (a *Analysis) Empty() bool {
	for i := range a.Entries {
		if len(a.Entries[i].Becauses) > 0 {
			return false
		}
	}
	return true
}

func (a *Analysis) Outline() []technique.Line {
	var lines []technique.Line
	for i := range a.Entries {
		e := &a.Entries[i]
		lines = append(lines, technique.Line{Depth: 0, Text: e.Problem})
		if e.Question != "" {
			lines = append(lines, technique.Line{Depth: 1, Text: "¿" + e.Question + "?"})
		}
		tree.Walk(&e.Becauses, becauses, func(p tree.Path, b *Because) bool {
			text := "Porque " + b.Text
			if b.RootCause {
				text += " [causa raíz]"
			}
			lines = append(lines, technique.Line{Depth: len(p), Text: text})
			if b.Question != "" {
				lines = append(lines, technique.Line{Depth: len(p) + 1, Text: "¿" + b.Question + "?"})
			}
			return true
		})
	}
	return lines
}

func (a *Analysis) Find(nodeID string) (string, bool) {
	var text string
	var found bool
	for i := range a.Entries {
		tree.Walk(&a.Entries[i].Becauses, becauses, func(_ tree.Path, b *Because) bool {
			if b.ID == nodeID {
				text, found = b.Text, true
			}
			return !found
		})
		if found {
			break
		}
	}
	return text, found
}
