package domain

import (
	"strconv"

	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
)

// ToItem projects a node for list output. A nil childrenCount omits the field.
func ToItem(c *Catalog, t *typedomain.CatalogType, parent *Catalog, hasChildren bool, childrenCount *int64) Item {
	item := Item{
		ID:            c.IDString(),
		Name:          c.Name,
		Description:   c.Description,
		Level:         c.Level,
		Path:          c.Path,
		SortOrder:     c.SortOrder,
		Enabled:       c.Enabled,
		Thumb:         c.Thumb,
		HasChildren:   hasChildren,
		Type:          ToTypeSummary(t),
		Parent:        ToParentSummary(parent),
		CreateTime:    typedomain.FormatTime(c.CreatedAt),
		UpdateTime:    typedomain.FormatTime(c.UpdatedAt),
		ChildrenCount: childrenCount,
	}
	if len(c.Metadata) > 0 {
		item.Metadata = c.Metadata
	}
	return item
}

func ToTypeSummary(t *typedomain.CatalogType) TypeSummary {
	if t == nil {
		return TypeSummary{}
	}
	return TypeSummary{
		ID:   strconv.FormatInt(t.ID, 10),
		Name: t.Name,
		Code: t.Code,
	}
}

func ToTypeDetail(t *typedomain.CatalogType) TypeDetail {
	if t == nil {
		return TypeDetail{}
	}
	return TypeDetail{
		ID:          strconv.FormatInt(t.ID, 10),
		Name:        t.Name,
		Code:        t.Code,
		Description: t.Description,
	}
}

func ToParentSummary(parent *Catalog) *ParentSummary {
	if parent == nil {
		return nil
	}
	return &ParentSummary{
		ID:   parent.IDString(),
		Name: parent.Name,
		Path: parent.Path,
	}
}

func ToNodeSummary(c *Catalog, hasChildren bool) NodeSummary {
	return NodeSummary{
		ID:          c.IDString(),
		Name:        c.Name,
		Path:        c.Path,
		Level:       c.Level,
		SortOrder:   c.SortOrder,
		Enabled:     c.Enabled,
		HasChildren: hasChildren,
	}
}

func ToAncestorItem(c *Catalog) AncestorItem {
	return AncestorItem{
		ID:    c.IDString(),
		Name:  c.Name,
		Path:  c.Path,
		Level: c.Level,
	}
}
