// Package technique holds what the Ishikawa, 5 Whys and CTM editors share:
// the mutation command, root-cause candidates and the outline used by reports.
package technique

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"rcaflow/internal/analysis/technique/tree"
	dErrors "rcaflow/pkg/domain-errors"
)

type Kind string

const (
	KindIshikawa Kind = "ishikawa"
	KindFiveWhys Kind = "fivewhys"
	KindCTM      Kind = "ctm"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindIshikawa, KindFiveWhys, KindCTM:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "technique must be ishikawa, fivewhys or ctm")
}

type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Mutation edits one node of a technique tree. For OpAdd, Path addresses
// the parent; for OpUpdate and OpRemove it addresses the node itself.
// Optional fields left nil are not changed by OpUpdate.
type Mutation struct {
	Op     Op
	Target string
	Path   tree.Path
	Text   *string

	// 5 Whys
	Question  *string
	RootCause *bool

	// CTM
	Status *string
	Level  *string
}

// Candidate is a tree node that may be promoted to an identified root cause.
type Candidate struct {
	NodeID string `json:"nodeId"`
	Text   string `json:"text"`
	Path   string `json:"path"`
	// Context names the branch the node hangs from, e.g. the Ishikawa category.
	Context string `json:"context"`
}

// Line is one row of an indented outline.
type Line struct {
	Depth int
	Text  string
}

// Editor is implemented by each technique tree.
type Editor interface {
	Apply(m Mutation) (tree.Path, error)
	Candidates() []Candidate
	// Empty reports whether the tree lacks the content step 3 requires.
	Empty() bool
	Outline() []Line
	// Find returns the text of the node with the given id.
	Find(nodeID string) (string, bool)
}

const MaxTextLength = 1000

func NewNodeID() string {
	return uuid.NewString()
}

// Text validates a required free-text value.
func Text(field string, v *string) (string, error) {
	if v == nil {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if utf8.RuneCountInString(s) > MaxTextLength {
		return "", dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	return s, nil
}

// OptionalText validates a free-text value that may be blank.
func OptionalText(field string, v string) (string, error) {
	s := strings.TrimSpace(v)
	if utf8.RuneCountInString(s) > MaxTextLength {
		return "", dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	return s, nil
}

func UnknownTarget(target string) error {
	return dErrors.New(dErrors.CodeInvalidInput, "unknown tree target "+`"`+target+`"`)
}

func UnsupportedOp(op Op, target string) error {
	return dErrors.New(dErrors.CodeInvalidInput, "cannot "+string(op)+" "+target)
}
