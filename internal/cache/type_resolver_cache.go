package cache

import (
	"strconv"
	"strings"
	"time"

	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/internal/clock"
)

const defaultTypeTTL = 30 * time.Second

// TypeResolverCache keeps catalog types hot for the query services, which
// resolve a type on nearly every request.
type TypeResolverCache interface {
	GetByID(id int64) (*typedomain.CatalogType, bool)
	GetByCode(code string) (*typedomain.CatalogType, bool)
	Set(t *typedomain.CatalogType)
	Invalidate()
}

type typeResolverCache struct {
	types Cache[string, typedomain.CatalogType]
	ttl   time.Duration
}

func NewTypeResolverCache(c clock.Clock) TypeResolverCache {
	return &typeResolverCache{
		types: NewTTLCache[string, typedomain.CatalogType](WithClock(c), WithMaxSize(1_000)),
		ttl:   defaultTypeTTL,
	}
}

func (c *typeResolverCache) GetByID(id int64) (*typedomain.CatalogType, bool) {
	return c.get(idKey(id))
}

func (c *typeResolverCache) GetByCode(code string) (*typedomain.CatalogType, bool) {
	return c.get(codeKey(code))
}

func (c *typeResolverCache) Set(t *typedomain.CatalogType) {
	if t == nil || t.ID == 0 {
		return
	}
	c.types.Set(idKey(t.ID), *t, c.ttl)
	c.types.Set(codeKey(t.Code), *t, c.ttl)
}

func (c *typeResolverCache) Invalidate() {
	c.types.Purge()
}

// get hands out copies so callers cannot mutate cached entries.
func (c *typeResolverCache) get(key string) (*typedomain.CatalogType, bool) {
	t, ok := c.types.Get(key)
	if !ok {
		return nil, false
	}
	return &t, true
}

func idKey(id int64) string {
	return "id|" + strconv.FormatInt(id, 10)
}

func codeKey(code string) string {
	return "code|" + strings.ToLower(strings.TrimSpace(code))
}
