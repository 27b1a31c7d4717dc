package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/catalog/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/catalog/internal/catalog/repository"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"gorm.io/gorm"
)

type typeFixture struct {
	Code        string
	Name        string
	Description string
}

type catalogFixture struct {
	TypeCode  string
	Name      string
	SortOrder int
	Metadata  map[string]any
	Children  []catalogFixture
}

var types = []typeFixture{
	{Code: "product", Name: "Product Catalog", Description: "Product categories"},
	{Code: "article", Name: "Article Catalog", Description: "Editorial categories"},
	{Code: "lottery", Name: "Lottery Catalog", Description: "Lottery games"},
}

var catalogs = []catalogFixture{
	{TypeCode: "product", Name: "Electronics", SortOrder: 1, Children: []catalogFixture{
		{TypeCode: "product", Name: "Phones", SortOrder: 1},
	}},
	{TypeCode: "product", Name: "Computers", SortOrder: 2, Children: []catalogFixture{
		{TypeCode: "product", Name: "Laptops", SortOrder: 1},
	}},
	{TypeCode: "article", Name: "Tech Articles", SortOrder: 1, Children: []catalogFixture{
		{TypeCode: "article", Name: "PHP", SortOrder: 1},
	}},
	{TypeCode: "lottery", Name: "Daily Lottery", SortOrder: 1, Metadata: map[string]any{
		"max_daily_draws": 3,
		"points_required": 10,
	}},
}

// Result counts the rows a seed run inserted.
type Result struct {
	Types    int `json:"types"`
	Catalogs int `json:"catalogs"`
}

// EnsureFixtures inserts the demo taxonomy. Rows that already exist, matched by
// type code or by (type, parent, name), are left untouched.
func EnsureFixtures(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) (Result, error) {
	if db == nil {
		return Result{}, errors.New("seed database handle is required")
	}
	if node == nil {
		return Result{}, errors.New("seed id generator is required")
	}

	var result Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byCode := make(map[string]*typedomain.CatalogType, len(types))
		for _, fixture := range types {
			ct, created, err := ensureTypeTx(ctx, tx, node, fixture, now)
			if err != nil {
				return err
			}
			if created {
				result.Types++
			}
			byCode[ct.Code] = ct
		}

		repo := catalogrepository.Provide()
		for _, fixture := range catalogs {
			n, err := ensureCatalogTx(ctx, tx, repo, node, byCode, nil, fixture, now)
			if err != nil {
				return err
			}
			result.Catalogs += n
		}
		return nil
	})
	return result, err
}

func ensureTypeTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, fixture typeFixture, now time.Time) (*typedomain.CatalogType, bool, error) {
	var ct typedomain.CatalogType
	err := tx.WithContext(ctx).Where("code = ?", fixture.Code).First(&ct).Error
	if err == nil {
		return &ct, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	description := fixture.Description
	ct = typedomain.CatalogType{
		ID:          node.Generate().Int64(),
		Code:        fixture.Code,
		Name:        fixture.Name,
		Description: &description,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(&ct).Error; err != nil {
		return nil, false, err
	}
	return &ct, true, nil
}

func ensureCatalogTx(
	ctx context.Context,
	tx *gorm.DB,
	repo catalogdomain.Repository,
	node *snowflake.Node,
	byCode map[string]*typedomain.CatalogType,
	parent *catalogdomain.Catalog,
	fixture catalogFixture,
	now time.Time,
) (int, error) {
	ct, ok := byCode[fixture.TypeCode]
	if !ok {
		return 0, typedomain.ErrNotFound
	}

	stmt := tx.WithContext(ctx).
		Where("type_id = ? AND name = ?", ct.ID, fixture.Name)
	if parent == nil {
		stmt = stmt.Where("parent_id IS NULL")
	} else {
		stmt = stmt.Where("parent_id = ?", parent.ID)
	}

	inserted := 0
	var current catalogdomain.Catalog
	err := stmt.First(&current).Error
	switch {
	case err == nil:
		current.Parent = parent
	case errors.Is(err, gorm.ErrRecordNotFound):
		current = catalogdomain.Catalog{
			TypeID:    ct.ID,
			Name:      fixture.Name,
			SortOrder: fixture.SortOrder,
			Enabled:   true,
			Metadata:  fixture.Metadata,
			CreatedAt: now,
			UpdatedAt: now,
		}
		current.AssignID(node.Generate().Int64())
		current.SetParent(parent)
		if err := repo.Save(ctx, tx, &current, false); err != nil {
			return 0, err
		}
		inserted++
	default:
		return 0, err
	}

	for _, child := range fixture.Children {
		n, err := ensureCatalogTx(ctx, tx, repo, node, byCode, &current, child, now)
		if err != nil {
			return 0, err
		}
		inserted += n
	}
	return inserted, nil
}
