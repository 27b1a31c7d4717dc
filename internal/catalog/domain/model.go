package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"

	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"gorm.io/datatypes"
)

const (
	MaxNameLength  = 100
	MaxPathLength  = 255
	MaxThumbLength = 255
	PathSeparator  = "/"
)

// Catalog is one node of a typed taxonomy tree. Level and Path are derived
// from the parent chain and must only be changed through the tree operations
// below, which also keep ParentID and both sides of the parent/children link
// in sync.
type Catalog struct {
	ID          int64             `json:"id" gorm:"primaryKey;autoIncrement:false"`
	TypeID      int64             `json:"type_id" gorm:"not null;index:idx_catalogs_type_parent,priority:1;index:idx_catalogs_parent_type,priority:2"`
	ParentID    *int64            `json:"parent_id,omitempty" gorm:"index:idx_catalogs_type_parent,priority:2;index:idx_catalogs_parent_type,priority:1"`
	Name        string            `json:"name" gorm:"type:varchar(100);not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	SortOrder   int               `json:"sort_order" gorm:"not null;index:idx_catalogs_sort_order"`
	Level       int               `json:"level" gorm:"not null"`
	Path        *string           `json:"path,omitempty" gorm:"type:varchar(255);index:idx_catalogs_path"`
	Enabled     bool              `json:"enabled" gorm:"not null"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	Thumb       *string           `json:"thumb,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null"`

	Type     *typedomain.CatalogType `json:"-" gorm:"foreignKey:TypeID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Parent   *Catalog                `json:"-" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Children []*Catalog              `json:"children,omitempty" gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
}

func (Catalog) TableName() string { return "catalogs" }

func (c *Catalog) IDString() string {
	return strconv.FormatInt(c.ID, 10)
}

// PathValue returns the materialized path, or "" while it is undefined.
func (c *Catalog) PathValue() string {
	if c.Path == nil {
		return ""
	}
	return *c.Path
}

// DescendantPrefix is the LIKE prefix shared by every descendant path.
func (c *Catalog) DescendantPrefix() string {
	if c.Path == nil {
		return ""
	}
	return *c.Path + PathSeparator
}

// PathIDs splits a materialized path into its ids, root first.
func PathIDs(path string) ([]int64, error) {
	if path == "" {
		return nil, nil
	}
	parts := strings.Split(path, PathSeparator)
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AssignID gives an unsaved node its identifier and derives the paths that
// depend on it.
func (c *Catalog) AssignID(id int64) {
	c.ID = id
	for _, child := range c.Children {
		child.syncParentID()
	}
	c.updatePath()
}

// SetParent attaches c under parent, or makes it a root when parent is nil.
// Passing the current parent only re-derives level and path. The old parent's
// children are updated and the whole subtree below c is recomputed.
func (c *Catalog) SetParent(parent *Catalog) {
	if c.Parent != parent {
		if c.Parent != nil {
			c.Parent.RemoveChild(c)
		}
		c.Parent = parent
		if parent != nil {
			parent.AddChild(c)
		}
	}

	c.syncParentID()
	c.updateLevel()
	c.updatePath()
}

// AddChild links child under c. Children stay ordered by SortOrder.
func (c *Catalog) AddChild(child *Catalog) {
	if child == nil || c.hasChild(child) {
		return
	}
	c.insertChild(child)
	if child.Parent != c {
		child.SetParent(c)
	}
}

// RemoveChild unlinks child from c. The child's parent is cleared only while it
// still points back at c, in which case the child becomes a root.
func (c *Catalog) RemoveChild(child *Catalog) {
	idx := c.childIndex(child)
	if idx < 0 {
		return
	}
	c.Children = append(c.Children[:idx], c.Children[idx+1:]...)

	if child.Parent == c {
		child.Parent = nil
		child.syncParentID()
		child.updateLevel()
		child.updatePath()
	}
}

func (c *Catalog) HasChildren() bool {
	return len(c.Children) > 0
}

// Ancestors returns the parent chain ordered from the root to the direct parent.
func (c *Catalog) Ancestors() []*Catalog {
	var ancestors []*Catalog
	for parent := c.Parent; parent != nil; parent = parent.Parent {
		ancestors = append(ancestors, parent)
	}
	reverse(ancestors)
	return ancestors
}

// AncestorIDs returns the ids of Ancestors, skipping unsaved nodes.
func (c *Catalog) AncestorIDs() []int64 {
	var ids []int64
	for parent := c.Parent; parent != nil; parent = parent.Parent {
		if parent.ID != 0 {
			ids = append(ids, parent.ID)
		}
	}
	reverse(ids)
	return ids
}

// IsAncestorOf reports whether c appears in other's parent chain.
func (c *Catalog) IsAncestorOf(other *Catalog) bool {
	if other == nil {
		return false
	}
	for parent := other.Parent; parent != nil; parent = parent.Parent {
		if sameNode(parent, c) {
			return true
		}
	}
	return false
}

func (c *Catalog) IsDescendantOf(other *Catalog) bool {
	if other == nil {
		return false
	}
	return other.IsAncestorOf(c)
}

// Subtree returns c followed by its loaded descendants in breadth-first order.
func (c *Catalog) Subtree() []*Catalog {
	nodes := []*Catalog{c}
	for i := 0; i < len(nodes); i++ {
		nodes = append(nodes, nodes[i].Children...)
	}
	return nodes
}

// BuildForest links persisted rows through ParentID without recomputing
// levels or paths. Parentless rows are returned as roots in input order; rows
// whose parent is not part of nodes are dropped.
func BuildForest(nodes []*Catalog) []*Catalog {
	index := make(map[int64]*Catalog, len(nodes))
	for _, node := range nodes {
		node.Parent = nil
		node.Children = nil
		index[node.ID] = node
	}

	roots := make([]*Catalog, 0)
	for _, node := range nodes {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := index[*node.ParentID]
		if !ok || parent == node {
			continue
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}

	for _, node := range nodes {
		if len(node.Children) > 1 {
			sortChildren(node.Children)
		}
	}
	return roots
}

func (c *Catalog) syncParentID() {
	if c.Parent == nil || c.Parent.ID == 0 {
		c.ParentID = nil
		return
	}
	id := c.Parent.ID
	c.ParentID = &id
}

func (c *Catalog) updateLevel() {
	if c.Parent == nil {
		c.Level = 0
	} else {
		c.Level = c.Parent.Level + 1
	}
	for _, child := range c.Children {
		child.updateLevel()
	}
}

// updatePath leaves the path undefined until the node has an id. A parent
// whose own path is still undefined is derived first.
func (c *Catalog) updatePath() {
	switch {
	case c.ID == 0:
		c.Path = nil
	case c.Parent == nil:
		path := c.IDString()
		c.Path = &path
	default:
		if c.Parent.Path == nil {
			c.Parent.updatePathOnly()
		}
		if c.Parent.Path == nil {
			c.Path = nil
		} else {
			path := *c.Parent.Path + PathSeparator + c.IDString()
			c.Path = &path
		}
	}

	for _, child := range c.Children {
		child.updatePath()
	}
}

// updatePathOnly derives c's own path without touching its children.
func (c *Catalog) updatePathOnly() {
	if c.ID == 0 {
		return
	}
	if c.Parent == nil {
		path := c.IDString()
		c.Path = &path
		return
	}
	if c.Parent.Path == nil {
		c.Parent.updatePathOnly()
	}
	if c.Parent.Path != nil {
		path := *c.Parent.Path + PathSeparator + c.IDString()
		c.Path = &path
	}
}

func (c *Catalog) hasChild(child *Catalog) bool {
	return c.childIndex(child) >= 0
}

func (c *Catalog) childIndex(child *Catalog) int {
	for i, existing := range c.Children {
		if existing == child {
			return i
		}
	}
	return -1
}

// insertChild keeps Children sorted by SortOrder, after existing equal entries.
func (c *Catalog) insertChild(child *Catalog) {
	idx := sort.Search(len(c.Children), func(i int) bool {
		return c.Children[i].SortOrder > child.SortOrder
	})
	c.Children = append(c.Children, nil)
	copy(c.Children[idx+1:], c.Children[idx:])
	c.Children[idx] = child
}

func sortChildren(children []*Catalog) {
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].SortOrder < children[j].SortOrder
	})
}

func sameNode(a, b *Catalog) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil && a.ID != 0 && a.ID == b.ID
}

func reverse[T any](items []T) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
