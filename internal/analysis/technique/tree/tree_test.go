package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rcaflow/pkg/domain-errors"
)

type node struct {
	Name string
	Kids []node
}

func kids(n *node) *[]node { return &n.Kids }

func sample() []node {
	return []node{
		{Name: "a", Kids: []node{
			{Name: "a0"},
			{Name: "a1", Kids: []node{{Name: "a1x"}}},
		}},
		{Name: "b"},
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("0.2.1")
	require.NoError(t, err)
	assert.Equal(t, Path{0, 2, 1}, p)
	assert.Equal(t, "0.2.1", p.String())

	root, err := ParsePath("")
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	for _, bad := range []string{"a", "1..2", "-1", "1.x"} {
		_, err := ParsePath(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), bad)
	}
}

func TestPathChildDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	a := base.Child(1)
	b := base.Child(2)
	assert.Equal(t, Path{0, 1}, a)
	assert.Equal(t, Path{0, 2}, b)
	assert.Equal(t, Path{0}, a.Parent())
}

func TestGet(t *testing.T) {
	roots := sample()
	n, err := Get(&roots, Path{0, 1, 0}, kids)
	require.NoError(t, err)
	assert.Equal(t, "a1x", n.Name)

	for _, p := range []Path{{}, {2}, {0, 2}, {1, 0}, {0, 1, 0, 0}} {
		_, err := Get(&roots, p, kids)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), p.String())
	}
}

func TestInsert(t *testing.T) {
	roots := sample()
	p, err := Insert(&roots, Path{}, node{Name: "c"}, kids)
	require.NoError(t, err)
	assert.Equal(t, Path{2}, p)

	p, err = Insert(&roots, Path{1}, node{Name: "b0"}, kids)
	require.NoError(t, err)
	assert.Equal(t, Path{1, 0}, p)

	_, err = Insert(&roots, Path{5}, node{Name: "x"}, kids)
	assert.Error(t, err)

	want := sample()
	want[1].Kids = []node{{Name: "b0"}}
	want = append(want, node{Name: "c"})
	if diff := cmp.Diff(want, roots); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceAndRemove(t *testing.T) {
	roots := sample()
	require.NoError(t, Replace(&roots, Path{0, 0}, kids, func(n *node) { n.Name = "renamed" }))

	removed, err := Remove(&roots, Path{0, 1}, kids)
	require.NoError(t, err)
	assert.Equal(t, "a1", removed.Name)
	assert.Len(t, removed.Kids, 1)

	want := []node{{Name: "a", Kids: []node{{Name: "renamed"}}}, {Name: "b"}}
	if diff := cmp.Diff(want, roots); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}

	_, err = Remove(&roots, Path{0, 1}, kids)
	assert.Error(t, err)
}

func TestWalk(t *testing.T) {
	roots := sample()
	var visited []string
	Walk(&roots, kids, func(p Path, n *node) bool {
		visited = append(visited, p.String()+"="+n.Name)
		return n.Name != "a1"
	})
	assert.Equal(t, []string{"0=a", "0.0=a0", "0.1=a1", "1=b"}, visited)
	assert.Equal(t, 5, Count(&roots, kids))
	assert.True(t, IsLeaf(&roots[1], kids))
}
