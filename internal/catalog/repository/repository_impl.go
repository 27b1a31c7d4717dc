package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/smallbiznis/catalog/internal/catalog/domain"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const catalogColumns = `id, type_id, parent_id, name, description, sort_order, level, path, enabled, metadata, thumb, created_at, updated_at`

var (
	ErrUnsavedNode  = errors.New("catalog_id_unassigned")
	ErrNotAttribute = errors.New("catalog_column_not_attribute")
)

var upsertColumns = []string{
	"type_id", "parent_id", "name", "description", "sort_order", "level",
	"path", "enabled", "thumb", "updated_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Catalog, error) {
	var c domain.Catalog
	err := db.WithContext(ctx).Raw(
		`SELECT `+catalogColumns+` FROM catalogs WHERE id = ? LIMIT 1`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]*domain.Catalog, error) {
	items := []*domain.Catalog{}
	if len(ids) == 0 {
		return items, nil
	}
	err := db.WithContext(ctx).Raw(
		`SELECT `+catalogColumns+` FROM catalogs WHERE id IN ? ORDER BY level ASC, sort_order ASC, name ASC`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindOneByPath(ctx context.Context, db *gorm.DB, path string) (*domain.Catalog, error) {
	var c domain.Catalog
	err := db.WithContext(ctx).Raw(
		`SELECT `+catalogColumns+` FROM catalogs WHERE path = ? LIMIT 1`,
		path,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindRoots(ctx context.Context, db *gorm.DB, onlyEnabled bool) ([]*domain.Catalog, error) {
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).Where("parent_id IS NULL")
	if onlyEnabled {
		stmt = stmt.Where("enabled = ?", true)
	}
	return findOrdered(stmt, siblingOrder)
}

func (r *repo) FindRootsByType(ctx context.Context, db *gorm.DB, typeID int64) ([]*domain.Catalog, error) {
	return r.findRootsByType(ctx, db, typeID, false)
}

func (r *repo) FindEnabledRootsByType(ctx context.Context, db *gorm.DB, typeID int64) ([]*domain.Catalog, error) {
	return r.findRootsByType(ctx, db, typeID, true)
}

func (r *repo) findRootsByType(ctx context.Context, db *gorm.DB, typeID int64, onlyEnabled bool) ([]*domain.Catalog, error) {
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).
		Where("parent_id IS NULL").
		Where("type_id = ?", typeID)
	if onlyEnabled {
		stmt = stmt.Where("enabled = ?", true)
	}
	return findOrdered(stmt, siblingOrder)
}

func (r *repo) FindChildrenOf(ctx context.Context, db *gorm.DB, parent *domain.Catalog) ([]*domain.Catalog, error) {
	return r.findChildrenOf(ctx, db, parent, false)
}

func (r *repo) FindEnabledChildrenOf(ctx context.Context, db *gorm.DB, parent *domain.Catalog) ([]*domain.Catalog, error) {
	return r.findChildrenOf(ctx, db, parent, true)
}

func (r *repo) findChildrenOf(ctx context.Context, db *gorm.DB, parent *domain.Catalog, onlyEnabled bool) ([]*domain.Catalog, error) {
	if parent == nil || parent.ID == 0 {
		return []*domain.Catalog{}, nil
	}
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).Where("parent_id = ?", parent.ID)
	if onlyEnabled {
		stmt = stmt.Where("enabled = ?", true)
	}
	return findOrdered(stmt, siblingOrder)
}

func (r *repo) FindByType(ctx context.Context, db *gorm.DB, typeID int64) ([]*domain.Catalog, error) {
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).Where("type_id = ?", typeID)
	return findOrdered(stmt, treeOrder)
}

// FindAllDescendantsOf matches the subtree through the path prefix, so it only
// needs node's own path.
func (r *repo) FindAllDescendantsOf(ctx context.Context, db *gorm.DB, node *domain.Catalog) ([]*domain.Catalog, error) {
	if node == nil || node.Path == nil {
		return []*domain.Catalog{}, nil
	}
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).Where("path LIKE ?", node.DescendantPrefix()+"%")
	return findOrdered(stmt, treeOrder)
}

func (r *repo) FindSiblings(ctx context.Context, db *gorm.DB, node *domain.Catalog) ([]*domain.Catalog, error) {
	if node == nil {
		return []*domain.Catalog{}, nil
	}
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).
		Where("type_id = ?", node.TypeID).
		Where("id <> ?", node.ID)
	if node.ParentID == nil {
		stmt = stmt.Where("parent_id IS NULL")
	} else {
		stmt = stmt.Where("parent_id = ?", *node.ParentID)
	}
	return findOrdered(stmt, siblingOrder)
}

func (r *repo) FindTreeArrayByType(ctx context.Context, db *gorm.DB, typeID int64, onlyEnabled bool) ([]domain.TreeRow, error) {
	rows := []domain.TreeRow{}
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).
		Select("id, name, level, parent_id, sort_order, path").
		Where("type_id = ?", typeID)
	if onlyEnabled {
		stmt = stmt.Where("enabled = ?", true)
	}
	if err := option.WithSortBy(treeOrder).Apply(stmt).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindForest loads every node down to filter.MaxLevel in one query, ordered so
// that BuildForest sees parents before children.
func (r *repo) FindForest(ctx context.Context, db *gorm.DB, filter domain.ForestFilter) ([]*domain.Catalog, error) {
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).Where("level <= ?", filter.MaxLevel)
	if filter.TypeID != nil {
		stmt = stmt.Where("type_id = ?", *filter.TypeID)
	}
	if filter.EnabledOnly {
		stmt = stmt.Where("enabled = ?", true)
	}
	return findOrdered(stmt, treeOrder.Then("id", false))
}

// GetMaxSortOrder returns 0 when no sibling matches. A zero typeID spans all types.
func (r *repo) GetMaxSortOrder(ctx context.Context, db *gorm.DB, parentID *int64, typeID int64) (int, error) {
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).Select("COALESCE(MAX(sort_order), 0)")
	if parentID == nil {
		stmt = stmt.Where("parent_id IS NULL")
	} else {
		stmt = stmt.Where("parent_id = ?", *parentID)
	}
	if typeID != 0 {
		stmt = stmt.Where("type_id = ?", typeID)
	}

	var maxOrder int64
	if err := stmt.Scan(&maxOrder).Error; err != nil {
		return 0, err
	}
	return int(maxOrder), nil
}

func (r *repo) CountChildren(ctx context.Context, db *gorm.DB, parentIDs []int64, onlyEnabled bool) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(parentIDs))
	if len(parentIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		ParentID int64
		Total    int64
	}
	stmt := db.WithContext(ctx).Model(&domain.Catalog{}).
		Select("parent_id, COUNT(*) AS total").
		Where("parent_id IN ?", parentIDs)
	if onlyEnabled {
		stmt = stmt.Where("enabled = ?", true)
	}
	if err := stmt.Group("parent_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ParentID] = row.Total
	}
	return counts, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Page) ([]*domain.Catalog, pagination.Info, error) {
	stmt := db.WithContext(ctx).Model(&domain.Catalog{})
	if filter.TypeID != nil {
		stmt = stmt.Where("type_id = ?", *filter.TypeID)
	}
	switch {
	case filter.ParentID != nil:
		stmt = stmt.Where("parent_id = ?", *filter.ParentID)
	case filter.RootsOnly:
		stmt = stmt.Where("parent_id IS NULL")
	}
	if filter.EnabledOnly {
		stmt = stmt.Where("enabled = ?", true)
	}
	stmt = option.WithKeyword(filter.Keyword, "name", "description").Apply(stmt)

	sort := filter.Sort
	if len(sort) == 0 {
		sort = siblingOrder
	}
	return pagination.Paginate[domain.Catalog](stmt, page, option.WithSortBy(sort.Then("id", false)))
}

// LoadAncestors links node.Parent and the chain above it. Children collections
// of the loaded ancestors are left untouched.
func (r *repo) LoadAncestors(ctx context.Context, db *gorm.DB, node *domain.Catalog) error {
	if node == nil || node.ParentID == nil {
		return nil
	}

	ids, err := r.ancestorIDs(ctx, db, node)
	if err != nil {
		return err
	}
	rows, err := r.FindByIDs(ctx, db, ids)
	if err != nil {
		return err
	}
	index := make(map[int64]*domain.Catalog, len(rows))
	for _, row := range rows {
		index[row.ID] = row
	}

	var parent *domain.Catalog
	for _, id := range ids {
		ancestor, ok := index[id]
		if !ok {
			continue
		}
		ancestor.Parent = parent
		parent = ancestor
	}
	node.Parent = parent
	return nil
}

func (r *repo) ancestorIDs(ctx context.Context, db *gorm.DB, node *domain.Catalog) ([]int64, error) {
	if node.Path != nil {
		ids, err := domain.PathIDs(*node.Path)
		if err == nil && len(ids) > 0 && ids[len(ids)-1] == node.ID {
			return ids[:len(ids)-1], nil
		}
	}

	// Path is unusable; walk parent rows instead.
	var ids []int64
	seen := map[int64]bool{node.ID: true}
	for next := node.ParentID; next != nil && !seen[*next]; {
		seen[*next] = true
		ids = append(ids, *next)
		parent, err := r.FindByID(ctx, db, *next)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		next = parent.ParentID
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids, nil
}

// LoadSubtree replaces node.Children with the persisted subtree below node.
func (r *repo) LoadSubtree(ctx context.Context, db *gorm.DB, node *domain.Catalog) error {
	if node == nil {
		return nil
	}
	descendants, err := r.FindAllDescendantsOf(ctx, db, node)
	if err != nil {
		return err
	}

	node.Children = nil
	index := map[int64]*domain.Catalog{node.ID: node}
	for _, d := range descendants {
		if d.ParentID == nil {
			continue
		}
		parent, ok := index[*d.ParentID]
		if !ok {
			continue
		}
		d.Parent = parent
		parent.Children = append(parent.Children, d)
		index[d.ID] = d
	}
	return nil
}

// Save upserts node and every loaded descendant. With flush it commits in its
// own transaction; otherwise the writes join whatever transaction db carries.
func (r *repo) Save(ctx context.Context, db *gorm.DB, node *domain.Catalog, flush bool) error {
	if node == nil {
		return gorm.ErrInvalidData
	}
	write := func(tx *gorm.DB) error {
		for _, n := range node.Subtree() {
			if err := r.upsert(ctx, tx, n); err != nil {
				return err
			}
		}
		return nil
	}
	if !flush {
		return write(db)
	}
	return db.WithContext(ctx).Transaction(write)
}

func (r *repo) upsert(ctx context.Context, db *gorm.DB, n *domain.Catalog) error {
	if n.ID == 0 {
		return ErrUnsavedNode
	}
	stmt := db.WithContext(ctx)
	updates := clause.AssignmentColumns(upsertColumns)
	if len(n.Metadata) == 0 {
		// JSONMap renders a nil map as the JSON text null.
		n.Metadata = nil
		stmt = stmt.Omit(clause.Associations, "metadata")
		updates = append(updates, clause.Assignment{Column: clause.Column{Name: "metadata"}, Value: gorm.Expr("NULL")})
	} else {
		stmt = stmt.Omit(clause.Associations)
		updates = append(updates, clause.AssignmentColumns([]string{"metadata"})...)
	}
	return stmt.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: updates,
		}).
		Create(n).Error
}

// UpdateAttributes writes only the named descriptive columns of node. parent_id,
// level and path are never touched, so a concurrent move stays intact.
func (r *repo) UpdateAttributes(ctx context.Context, db *gorm.DB, node *domain.Catalog, columns ...string) error {
	if node == nil || node.ID == 0 {
		return ErrUnsavedNode
	}
	values := map[string]any{"updated_at": node.UpdatedAt}
	for _, column := range columns {
		switch column {
		case "name":
			values[column] = node.Name
		case "description":
			values[column] = node.Description
		case "sort_order":
			values[column] = node.SortOrder
		case "enabled":
			values[column] = node.Enabled
		case "thumb":
			values[column] = node.Thumb
		case "metadata":
			values[column] = metadataValue(node)
		default:
			return fmt.Errorf("%w: %s", ErrNotAttribute, column)
		}
	}
	return db.WithContext(ctx).Model(&domain.Catalog{}).Where("id = ?", node.ID).Updates(values).Error
}

func metadataValue(n *domain.Catalog) any {
	if len(n.Metadata) == 0 {
		n.Metadata = nil
		return gorm.Expr("NULL")
	}
	return n.Metadata
}

// Remove deletes node and its whole subtree.
func (r *repo) Remove(ctx context.Context, db *gorm.DB, node *domain.Catalog, flush bool) error {
	if node == nil || node.ID == 0 {
		return nil
	}
	remove := func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Exec(`DELETE FROM catalogs WHERE id = ?`, node.ID).Error; err != nil {
			return err
		}
		if node.Path == nil {
			return nil
		}
		// Cascading foreign keys already cleared the subtree on most engines.
		return tx.WithContext(ctx).Exec(`DELETE FROM catalogs WHERE path LIKE ?`, node.DescendantPrefix()+"%").Error
	}
	if !flush {
		return remove(db)
	}
	return db.WithContext(ctx).Transaction(remove)
}

var (
	siblingOrder = option.Sort{{Column: "sort_order"}, {Column: "name"}}
	treeOrder    = option.Sort{{Column: "level"}, {Column: "sort_order"}, {Column: "name"}}
)

func findOrdered(stmt *gorm.DB, sort option.Sort) ([]*domain.Catalog, error) {
	items := []*domain.Catalog{}
	if err := option.WithSortBy(sort).Apply(stmt).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
