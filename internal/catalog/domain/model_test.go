package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id int64, name string, sortOrder int) *Catalog {
	c := &Catalog{Name: name, SortOrder: sortOrder, Enabled: true}
	c.AssignID(id)
	return c
}

func assertInvariants(t *testing.T, root *Catalog) {
	t.Helper()
	for _, n := range root.Subtree() {
		if n.Parent == nil {
			assert.Equal(t, 0, n.Level, "level of %s", n.Name)
			assert.Nil(t, n.ParentID, "parent id of %s", n.Name)
			if n.ID != 0 {
				require.NotNil(t, n.Path)
				assert.Equal(t, n.IDString(), *n.Path)
			}
			continue
		}
		assert.Equal(t, n.Parent.Level+1, n.Level, "level of %s", n.Name)
		require.NotNil(t, n.ParentID, "parent id of %s", n.Name)
		assert.Equal(t, n.Parent.ID, *n.ParentID)
		if n.ID != 0 {
			require.NotNil(t, n.Path)
			assert.Equal(t, n.Parent.PathValue()+"/"+n.IDString(), *n.Path)
		}
	}
}

func TestSetParentDerivesLevelAndPath(t *testing.T) {
	electronics := node(1, "Electronics", 1)
	phones := node(2, "Phones", 1)

	phones.SetParent(electronics)

	assert.Equal(t, 1, phones.Level)
	assert.Equal(t, "1/2", phones.PathValue())
	assert.Contains(t, electronics.Children, phones)
	assert.Same(t, electronics, phones.Parent)
	assertInvariants(t, electronics)
}

func TestSetParentRecomputesWholeSubtree(t *testing.T) {
	a := node(1, "a", 0)
	b := node(2, "b", 0)
	c := node(3, "c", 0)
	d := node(4, "d", 0)
	other := node(9, "other", 0)

	b.SetParent(a)
	c.SetParent(b)
	d.SetParent(c)
	assert.Equal(t, "1/2/3/4", d.PathValue())
	assert.Equal(t, 3, d.Level)

	b.SetParent(other)

	assert.NotContains(t, a.Children, b)
	assert.Contains(t, other.Children, b)
	assert.Equal(t, "9/2/3/4", d.PathValue())
	assert.Equal(t, 3, d.Level)
	assertInvariants(t, other)

	c.SetParent(nil)
	assert.Equal(t, 0, c.Level)
	assert.Equal(t, "3/4", d.PathValue())
	assert.Equal(t, 1, d.Level)
	assert.Empty(t, b.Children)
	assertInvariants(t, c)
}

func TestSetParentIsIdempotent(t *testing.T) {
	root := node(1, "root", 0)
	child := node(2, "child", 0)
	child.SetParent(root)

	level, path := child.Level, child.PathValue()
	child.SetParent(root)

	assert.Equal(t, level, child.Level)
	assert.Equal(t, path, child.PathValue())
	assert.Len(t, root.Children, 1)
}

func TestPathUndefinedUntilIDAssigned(t *testing.T) {
	root := node(1, "root", 0)
	child := &Catalog{Name: "draft"}
	grandchild := &Catalog{Name: "draft child"}

	child.SetParent(root)
	grandchild.SetParent(child)

	assert.Nil(t, child.Path)
	assert.Nil(t, grandchild.Path)
	assert.Equal(t, 2, grandchild.Level)

	child.AssignID(5)
	assert.Equal(t, "1/5", child.PathValue())
	require.NotNil(t, grandchild.ParentID)
	assert.Equal(t, int64(5), *grandchild.ParentID)

	grandchild.AssignID(6)
	assert.Equal(t, "1/5/6", grandchild.PathValue())
}

func TestSetParentBackfillsParentPath(t *testing.T) {
	root := &Catalog{ID: 1, Name: "root"}
	child := &Catalog{ID: 2, Name: "child"}

	child.SetParent(root)

	assert.Equal(t, "1", root.PathValue())
	assert.Equal(t, "1/2", child.PathValue())
}

func TestAddChildKeepsSortOrder(t *testing.T) {
	root := node(1, "root", 0)
	third := node(4, "third", 3)
	first := node(2, "first", 1)
	second := node(3, "second", 2)
	tied := node(5, "tied", 2)

	root.AddChild(third)
	root.AddChild(first)
	root.AddChild(second)
	root.AddChild(tied)
	root.AddChild(first)

	names := make([]string, 0, len(root.Children))
	for _, child := range root.Children {
		names = append(names, child.Name)
	}
	assert.Equal(t, []string{"first", "second", "tied", "third"}, names)
	assert.Same(t, root, tied.Parent)
	assert.Equal(t, "1/5", tied.PathValue())
}

func TestRemoveChildOrphansOnlyOwnChildren(t *testing.T) {
	oldParent := node(1, "old", 0)
	newParent := node(2, "new", 0)
	child := node(3, "child", 0)

	child.SetParent(oldParent)
	child.Parent = newParent

	oldParent.RemoveChild(child)

	assert.Same(t, newParent, child.Parent)

	newParent.Children = append(newParent.Children, child)
	newParent.RemoveChild(child)

	assert.Nil(t, child.Parent)
	assert.Nil(t, child.ParentID)
	assert.Equal(t, 0, child.Level)
	assert.Equal(t, "3", child.PathValue())
}

func TestAncestors(t *testing.T) {
	a := node(1, "a", 0)
	b := node(2, "b", 0)
	c := node(3, "c", 0)
	b.SetParent(a)
	c.SetParent(b)

	assert.Empty(t, a.Ancestors())
	assert.Empty(t, a.AncestorIDs())
	assert.Equal(t, []*Catalog{a, b}, c.Ancestors())
	assert.Equal(t, []int64{1, 2}, c.AncestorIDs())
	assert.Equal(t, []int64{1}, b.AncestorIDs())

	assert.True(t, a.IsAncestorOf(c))
	assert.True(t, c.IsDescendantOf(a))
	assert.False(t, c.IsAncestorOf(a))
	assert.False(t, a.IsDescendantOf(c))

	sibling := node(4, "sibling", 0)
	sibling.SetParent(a)
	assert.False(t, sibling.IsAncestorOf(b))
	assert.False(t, b.IsDescendantOf(sibling))
	assert.False(t, a.IsAncestorOf(a))
}

func TestBuildForest(t *testing.T) {
	one, two := int64(1), int64(2)
	rows := []*Catalog{
		{ID: 1, Name: "root", SortOrder: 2},
		{ID: 7, Name: "second root", SortOrder: 1},
		{ID: 3, Name: "late", ParentID: &one, SortOrder: 5, Level: 1},
		{ID: 2, Name: "early", ParentID: &one, SortOrder: 1, Level: 1},
		{ID: 4, Name: "leaf", ParentID: &two, Level: 2},
		{ID: 5, Name: "orphan", ParentID: ptr(int64(99)), Level: 1},
	}

	roots := BuildForest(rows)

	require.Len(t, roots, 2)
	assert.Equal(t, "root", roots[0].Name)
	assert.Equal(t, "second root", roots[1].Name)
	require.Len(t, roots[0].Children, 2)
	assert.Equal(t, "early", roots[0].Children[0].Name)
	assert.Equal(t, "late", roots[0].Children[1].Name)
	assert.Equal(t, "leaf", roots[0].Children[0].Children[0].Name)
	assert.Same(t, roots[0], roots[0].Children[0].Parent)
	assert.Len(t, roots[0].Subtree(), 4)
}

func TestPathIDs(t *testing.T) {
	ids, err := PathIDs("10/20/30")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)

	ids, err = PathIDs("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = PathIDs("10/x")
	assert.Error(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
