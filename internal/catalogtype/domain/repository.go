package domain

import (
	"context"

	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Keyword     string
	EnabledOnly bool
	SortColumn  string
	SortDesc    bool
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*CatalogType, error)
	FindOneByCode(ctx context.Context, db *gorm.DB, code string) (*CatalogType, error)
	FindEnabledTypes(ctx context.Context, db *gorm.DB) ([]*CatalogType, error)
	FindByCodesIn(ctx context.Context, db *gorm.DB, codes []string) ([]*CatalogType, error)
	FindAllIndexedByCode(ctx context.Context, db *gorm.DB) (map[string]*CatalogType, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Page) ([]*CatalogType, pagination.Info, error)
	CountCatalogs(ctx context.Context, db *gorm.DB, typeIDs []int64) (map[int64]int64, error)
	Insert(ctx context.Context, db *gorm.DB, t *CatalogType) error
	Update(ctx context.Context, db *gorm.DB, t *CatalogType) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
}
