package domain

import (
	"context"

	"github.com/smallbiznis/catalog/pkg/db/pagination"
)

// QueryService serves the read shapes of the taxonomy.
type QueryService interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Detail(ctx context.Context, req DetailRequest) (*DetailResponse, error)
	Tree(ctx context.Context, req TreeRequest) (*TreeResponse, error)
}

// ListRequest lists one level of the taxonomy. A nil ParentID restricts the
// list to roots, while an empty one disables the parent filter.
type ListRequest struct {
	TypeCode             string  `json:"typeCode"`
	ParentID             *string `json:"parentId"`
	Keyword              string  `json:"keyword"`
	EnabledOnly          *bool   `json:"enabledOnly"`
	IncludeChildrenCount bool    `json:"includeChildrenCount"`
	OrderBy              string  `json:"orderBy"`
	OrderDir             string  `json:"orderDir"`
	Page                 int     `json:"page"`
	PageSize             int     `json:"pageSize"`
}

type DetailRequest struct {
	CatalogID        string `json:"catalogId"`
	IncludeAncestors bool   `json:"includeAncestors"`
	IncludeChildren  bool   `json:"includeChildren"`
	IncludeSiblings  bool   `json:"includeSiblings"`
	EnabledOnly      *bool  `json:"enabledOnly"`
}

// TreeRequest renders nested roots. Zero MaxLevel selects the configured default.
type TreeRequest struct {
	TypeID          string `json:"typeId"`
	MaxLevel        int    `json:"maxLevel"`
	EnabledOnly     *bool  `json:"enabledOnly"`
	IncludeMetadata bool   `json:"includeMetadata"`
}

type TypeSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type TypeDetail struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
}

type ParentSummary struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Path *string `json:"path"`
}

// Item is the list projection of a catalog.
type Item struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   *string        `json:"description"`
	Level         int            `json:"level"`
	Path          *string        `json:"path"`
	SortOrder     int            `json:"sortOrder"`
	Enabled       bool           `json:"enabled"`
	Thumb         *string        `json:"thumb"`
	HasChildren   bool           `json:"hasChildren"`
	Type          TypeSummary    `json:"type"`
	Parent        *ParentSummary `json:"parent"`
	CreateTime    string         `json:"createTime"`
	UpdateTime    string         `json:"updateTime"`
	ChildrenCount *int64         `json:"childrenCount,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type ListResponse struct {
	List       []Item          `json:"list"`
	Pagination pagination.Info `json:"pagination"`
}

type AncestorItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Path  *string `json:"path"`
	Level int     `json:"level"`
}

type NodeSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Path        *string `json:"path"`
	Level       int     `json:"level"`
	SortOrder   int     `json:"sortOrder"`
	Enabled     bool    `json:"enabled"`
	HasChildren bool    `json:"hasChildren"`
}

// DetailResponse carries ancestors, children and siblings only when requested.
type DetailResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Level       int             `json:"level"`
	Path        *string         `json:"path"`
	SortOrder   int             `json:"sortOrder"`
	Enabled     bool            `json:"enabled"`
	Thumb       *string         `json:"thumb"`
	Metadata    map[string]any  `json:"metadata"`
	Type        TypeDetail      `json:"type"`
	Parent      *ParentSummary  `json:"parent"`
	Ancestors   *[]AncestorItem `json:"ancestors,omitempty"`
	Children    *[]NodeSummary  `json:"children,omitempty"`
	Siblings    *[]NodeSummary  `json:"siblings,omitempty"`
	CreateTime  string          `json:"createTime"`
	UpdateTime  string          `json:"updateTime"`
}

// CacheTags ties a cached detail to the catalog type it embeds.
func (r *DetailResponse) CacheTags() []string {
	if r == nil || r.Type.ID == "" {
		return nil
	}
	return []string{"catalog_type_" + r.Type.ID}
}

// TreeNode always carries a children array. It is empty past the depth limit.
type TreeNode struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Level       int            `json:"level"`
	Path        *string        `json:"path"`
	SortOrder   int            `json:"sortOrder"`
	Enabled     bool           `json:"enabled"`
	HasChildren bool           `json:"hasChildren"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Children    []TreeNode     `json:"children"`
}

type TreeMetadata struct {
	TypeID     *string `json:"typeId"`
	TypeName   *string `json:"typeName"`
	TotalNodes int     `json:"totalNodes"`
	MaxLevel   int     `json:"maxLevel"`
}

type TreeResponse struct {
	Tree     []TreeNode   `json:"tree"`
	Metadata TreeMetadata `json:"metadata"`
}
