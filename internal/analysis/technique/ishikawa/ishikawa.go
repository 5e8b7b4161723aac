// Package ishikawa implements the cause and effect diagram. Causes hang
// from categories and may be refined recursively; leaf causes are the
// root-cause candidates.
package ishikawa

import (
	"slices"

	"rcaflow/internal/analysis/technique"
	"rcaflow/internal/analysis/technique/tree"
	dErrors "rcaflow/pkg/domain-errors"
)

// DefaultCategories are the 6M.
var DefaultCategories = []string{"Mano de obra", "Método", "Máquina", "Material", "Medición", "Medio ambiente"}

const MaxCategories = 12

const (
	TargetProblem  = "problem"
	TargetCategory = "category"
	TargetCause    = "cause"
)

type Cause struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Causes []Cause `json:"causes,omitempty"`
}

func causes(c *Cause) *[]Cause { return &c.Causes }

type Category struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Causes []Cause `json:"causes"`
}

type Diagram struct {
	Problem    string     `json:"problem"`
	Categories []Category `json:"categories"`
}

func New() *Diagram {
	d := &Diagram{Categories: make([]Category, 0, len(DefaultCategories))}
	for _, name := range DefaultCategories {
		d.Categories = append(d.Categories, Category{ID: technique.NewNodeID(), Name: name, Causes: []Cause{}})
	}
	return d
}

// Apply edits the diagram. Category paths have one index; cause paths start
// with the category index followed by the cause path inside it.
func (d *Diagram) Apply(m technique.Mutation) (tree.Path, error) {
	switch m.Target {
	case TargetProblem:
		if m.Op != technique.OpUpdate {
			return nil, technique.UnsupportedOp(m.Op, m.Target)
		}
		var problem string
		if m.Text != nil {
			problem = *m.Text
		}
		text, err := technique.OptionalText("problem", problem)
		if err != nil {
			return nil, err
		}
		d.Problem = text
		return tree.Path{}, nil
	case TargetCategory:
		return d.applyCategory(m)
	case TargetCause:
		return d.applyCause(m)
	}
	return nil, technique.UnknownTarget(m.Target)
}

func (d *Diagram) applyCategory(m technique.Mutation) (tree.Path, error) {
	switch m.Op {
	case technique.OpAdd:
		if !m.Path.IsRoot() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "categories are added at the top level")
		}
		if len(d.Categories) >= MaxCategories {
			return nil, dErrors.New(dErrors.CodeValidation, "too many categories")
		}
		name, err := technique.Text("name", m.Text)
		if err != nil {
			return nil, err
		}
		d.Categories = append(d.Categories, Category{ID: technique.NewNodeID(), Name: name, Causes: []Cause{}})
		return tree.Path{len(d.Categories) - 1}, nil
	case technique.OpUpdate:
		cat, err := d.category(m.Path, true)
		if err != nil {
			return nil, err
		}
		name, err := technique.Text("name", m.Text)
		if err != nil {
			return nil, err
		}
		cat.Name = name
		return m.Path, nil
	case technique.OpRemove:
		if _, err := d.category(m.Path, true); err != nil {
			return nil, err
		}
		d.Categories = slices.Delete(d.Categories, m.Path[0], m.Path[0]+1)
		return m.Path, nil
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

// category resolves the category addressed by the first index of p. When
// exact is set p must have exactly one index.
func (d *Diagram) category(p tree.Path, exact bool) (*Category, error) {
	if len(p) == 0 || (exact && len(p) != 1) || p[0] >= len(d.Categories) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "path "+`"`+p.String()+`"`+" does not address a category")
	}
	return &d.Categories[p[0]], nil
}

func (d *Diagram) applyCause(m technique.Mutation) (tree.Path, error) {
	cat, err := d.category(m.Path, false)
	if err != nil {
		return nil, err
	}
	inner := m.Path[1:]
	switch m.Op {
	case technique.OpAdd:
		text, err := technique.Text("text", m.Text)
		if err != nil {
			return nil, err
		}
		p, err := tree.Insert(&cat.Causes, inner, Cause{ID: technique.NewNodeID(), Text: text}, causes)
		if err != nil {
			return nil, err
		}
		return append(tree.Path{m.Path[0]}, p...), nil
	case technique.OpUpdate:
		text, err := technique.Text("text", m.Text)
		if err != nil {
			return nil, err
		}
		return m.Path, tree.Replace(&cat.Causes, inner, causes, func(c *Cause) { c.Text = text })
	case technique.OpRemove:
		_, err := tree.Remove(&cat.Causes, inner, causes)
		return m.Path, err
	}
	return nil, technique.UnsupportedOp(m.Op, m.Target)
}

// Candidates returns the leaf causes of every category.
func (d *Diagram) Candidates() []technique.Candidate {
	var out []technique.Candidate
	for ci := range d.Categories {
		cat := &d.Categories[ci]
		tree.Walk(&cat.Causes, causes, func(p tree.Path, c *Cause) bool {
			if tree.IsLeaf(c, causes) {
				out = append(out, technique.Candidate{
					NodeID:  c.ID,
					Text:    c.Text,
					Path:    append(tree.Path{ci}, p...).String(),
					Context: cat.Name,
				})
			}
			return true
		})
	}
	return out
}

func (d *Diagram) Empty() bool {
	for i := range d.Categories {
		if len(d.Categories[i].Causes) > 0 {
			return false
		}
	}
	return true
}

func (d *Diagram) Outline() []technique.Line {
	var lines []technique.Line
	if d.Problem != "" {
		lines = append(lines, technique.Line{Depth: 0, Text: "Problema: " + d.Problem})
	}
	for i := range d.Categories {
		cat := &d.Categories[i]
		if len(cat.Causes) == 0 {
			continue
		}
		lines = append(lines, technique.Line{Depth: 0, Text: cat.Name})
		tree.Walk(&cat.Causes, causes, func(p tree.Path, c *Cause) bool {
			lines = append(lines, technique.Line{Depth: len(p), Text: c.Text})
			return true
		})
	}
	return lines
}

func (d *Diagram) Find(nodeID string) (string, bool) {
	var text string
	var found bool
	for i := range d.Categories {
		tree.Walk(&d.Categories[i].Causes, causes, func(_ tree.Path, c *Cause) bool {
			if c.ID == nodeID {
				text, found = c.Text, true
			}
			return !found
		})
		if found {
			break
		}
	}
	return text, found
}
