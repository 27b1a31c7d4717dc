package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/catalog/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
}

type CreateRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Enabled     *bool   `json:"enabled"`
}

type UpdateRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Enabled     *bool   `json:"enabled"`
}

// ListRequest drives the catalog type list query. Nil booleans take their defaults.
type ListRequest struct {
	Keyword             string `json:"keyword"`
	EnabledOnly         *bool  `json:"enabledOnly"`
	IncludeCatalogCount bool   `json:"includeCatalogCount"`
	OrderBy             string `json:"orderBy"`
	OrderDir            string `json:"orderDir"`
	Page                int    `json:"page"`
	PageSize            int    `json:"pageSize"`
}

type Response struct {
	ID           string  `json:"id"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	Enabled      bool    `json:"enabled"`
	CreateTime   string  `json:"createTime"`
	UpdateTime   string  `json:"updateTime"`
	CatalogCount *int64  `json:"catalogCount,omitempty"`
}

type ListResponse struct {
	List       []Response      `json:"list"`
	Pagination pagination.Info `json:"pagination"`
}

var (
	ErrNotFound        = errors.New("catalog_type_not_found")
	ErrDisabled        = errors.New("catalog_type_not_enabled")
	ErrInvalidID       = errors.New("invalid_catalog_type_id")
	ErrInvalidCode     = errors.New("invalid_catalog_type_code")
	ErrInvalidName     = errors.New("invalid_catalog_type_name")
	ErrInvalidOrderBy  = errors.New("invalid_order_by")
	ErrInvalidOrderDir = errors.New("invalid_order_dir")
	ErrCodeTaken       = errors.New("catalog_type_code_taken")
	ErrInUse           = errors.New("catalog_type_in_use")
)
