package repository

import (
	"context"

	"github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, code, name, description, enabled, created_at, updated_at FROM catalog_types`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.CatalogType, error) {
	var t domain.CatalogType
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE id = ?`, id).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) FindOneByCode(ctx context.Context, db *gorm.DB, code string) (*domain.CatalogType, error) {
	var t domain.CatalogType
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE code = ?`, code).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) FindEnabledTypes(ctx context.Context, db *gorm.DB) ([]*domain.CatalogType, error) {
	var items []*domain.CatalogType
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE enabled = ? ORDER BY name ASC`, true).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindByCodesIn(ctx context.Context, db *gorm.DB, codes []string) ([]*domain.CatalogType, error) {
	if len(codes) == 0 {
		return []*domain.CatalogType{}, nil
	}
	var items []*domain.CatalogType
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE code IN ? ORDER BY code ASC`, codes).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindAllIndexedByCode(ctx context.Context, db *gorm.DB) (map[string]*domain.CatalogType, error) {
	var items []*domain.CatalogType
	if err := db.WithContext(ctx).Raw(selectColumns + ` ORDER BY code ASC`).Scan(&items).Error; err != nil {
		return nil, err
	}
	indexed := make(map[string]*domain.CatalogType, len(items))
	for _, item := range items {
		indexed[item.Code] = item
	}
	return indexed, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Page) ([]*domain.CatalogType, pagination.Info, error) {
	stmt := db.WithContext(ctx).Model(&domain.CatalogType{})
	if filter.EnabledOnly {
		stmt = stmt.Where("enabled = ?", true)
	}
	stmt = option.WithKeyword(filter.Keyword, "name", "code", "description").Apply(stmt)

	sort := option.Sort{{Column: filter.SortColumn, Desc: filter.SortDesc}}.Then("id", filter.SortDesc)
	return pagination.Paginate[domain.CatalogType](stmt, page, option.WithSortBy(sort))
}

func (r *repo) CountCatalogs(ctx context.Context, db *gorm.DB, typeIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(typeIDs))
	if len(typeIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TypeID int64
		Total  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT type_id, COUNT(*) AS total FROM catalogs WHERE type_id IN ? GROUP BY type_id`,
		typeIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TypeID] = row.Total
	}
	return counts, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *domain.CatalogType) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO catalog_types (id, code, name, description, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.Code,
		t.Name,
		t.Description,
		t.Enabled,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, t *domain.CatalogType) error {
	if t == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE catalog_types SET name = ?, description = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		t.Name,
		t.Description,
		t.Enabled,
		t.UpdatedAt,
		t.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM catalog_types WHERE id = ?`, id).Error
}
