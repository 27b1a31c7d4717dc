package domain

import (
	"context"
	"errors"
	"strconv"
)

// Service is the write side used by admin tooling and fixtures.
type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Item, error)
	Update(ctx context.Context, req UpdateRequest) (*Item, error)
	Move(ctx context.Context, req MoveRequest) (*Item, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Item, error)
}

// CreateRequest identifies the type by TypeID or, when empty, by TypeCode.
// A nil SortOrder appends the node after its last sibling.
type CreateRequest struct {
	TypeID      string         `json:"typeId"`
	TypeCode    string         `json:"typeCode"`
	ParentID    *string        `json:"parentId"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	SortOrder   *int           `json:"sortOrder"`
	Enabled     *bool          `json:"enabled"`
	Metadata    map[string]any `json:"metadata"`
	Thumb       *string        `json:"thumb"`
}

type UpdateRequest struct {
	ID          string          `json:"id"`
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	SortOrder   *int            `json:"sortOrder"`
	Enabled     *bool           `json:"enabled"`
	Metadata    *map[string]any `json:"metadata"`
	Thumb       *string         `json:"thumb"`
}

// MoveRequest reattaches a node. A nil ParentID moves it to the root.
type MoveRequest struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parentId"`
	SortOrder *int    `json:"sortOrder"`
}

var (
	ErrNotFound         = errors.New("catalog_not_found")
	ErrDisabled         = errors.New("catalog_not_enabled")
	ErrInvalidID        = errors.New("invalid_catalog_id")
	ErrInvalidParentID  = errors.New("invalid_parent_id")
	ErrParentNotFound   = errors.New("parent_catalog_not_found")
	ErrParentDisabled   = errors.New("parent_catalog_not_enabled")
	ErrInvalidName      = errors.New("invalid_catalog_name")
	ErrInvalidSortOrder = errors.New("invalid_sort_order")
	ErrInvalidThumb     = errors.New("invalid_catalog_thumb")
	ErrTypeRequired     = errors.New("catalog_type_required")
	ErrTypeMismatch     = errors.New("catalog_type_mismatch")
	ErrCyclicMove       = errors.New("catalog_cyclic_move")
	ErrPathTooLong      = errors.New("catalog_path_too_long")
	ErrMoveInProgress   = errors.New("catalog_move_in_progress")
	ErrInvalidMaxLevel  = errors.New("invalid_max_level")
	ErrInvalidOrderBy   = errors.New("invalid_order_by")
	ErrInvalidOrderDir  = errors.New("invalid_order_dir")
)

// Cache tags shared by the query services and the invalidating writers.
const (
	TagCatalog     = "catalog"
	TagCatalogTree = "catalog_tree"
)

func CatalogTag(id int64) string {
	return "catalog_" + strconv.FormatInt(id, 10)
}

func TypeTag(typeID int64) string {
	return "catalog_type_" + strconv.FormatInt(typeID, 10)
}
