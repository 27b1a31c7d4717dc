package domain

import (
	"context"

	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
)

// ListFilter narrows the paginated list. ParentID takes precedence over RootsOnly.
type ListFilter struct {
	TypeID      *int64
	ParentID    *int64
	RootsOnly   bool
	Keyword     string
	EnabledOnly bool
	Sort        option.Sort
}

// ForestFilter bounds a single-query tree load.
type ForestFilter struct {
	TypeID      *int64
	EnabledOnly bool
	MaxLevel    int
}

// TreeRow is the flat projection used to rebuild a tree without walking it.
type TreeRow struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Level     int     `json:"level"`
	ParentID  *int64  `json:"parentId"`
	SortOrder int     `json:"sortOrder"`
	Path      *string `json:"path"`
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Catalog, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]*Catalog, error)
	FindOneByPath(ctx context.Context, db *gorm.DB, path string) (*Catalog, error)
	FindRoots(ctx context.Context, db *gorm.DB, onlyEnabled bool) ([]*Catalog, error)
	FindRootsByType(ctx context.Context, db *gorm.DB, typeID int64) ([]*Catalog, error)
	FindEnabledRootsByType(ctx context.Context, db *gorm.DB, typeID int64) ([]*Catalog, error)
	FindChildrenOf(ctx context.Context, db *gorm.DB, parent *Catalog) ([]*Catalog, error)
	FindEnabledChildrenOf(ctx context.Context, db *gorm.DB, parent *Catalog) ([]*Catalog, error)
	FindByType(ctx context.Context, db *gorm.DB, typeID int64) ([]*Catalog, error)
	FindAllDescendantsOf(ctx context.Context, db *gorm.DB, node *Catalog) ([]*Catalog, error)
	FindSiblings(ctx context.Context, db *gorm.DB, node *Catalog) ([]*Catalog, error)
	FindTreeArrayByType(ctx context.Context, db *gorm.DB, typeID int64, onlyEnabled bool) ([]TreeRow, error)
	FindForest(ctx context.Context, db *gorm.DB, filter ForestFilter) ([]*Catalog, error)
	GetMaxSortOrder(ctx context.Context, db *gorm.DB, parentID *int64, typeID int64) (int, error)
	CountChildren(ctx context.Context, db *gorm.DB, parentIDs []int64, onlyEnabled bool) (map[int64]int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Page) ([]*Catalog, pagination.Info, error)
	LoadAncestors(ctx context.Context, db *gorm.DB, node *Catalog) error
	LoadSubtree(ctx context.Context, db *gorm.DB, node *Catalog) error
	Save(ctx context.Context, db *gorm.DB, node *Catalog, flush bool) error
	UpdateAttributes(ctx context.Context, db *gorm.DB, node *Catalog, columns ...string) error
	Remove(ctx context.Context, db *gorm.DB, node *Catalog, flush bool) error
}
