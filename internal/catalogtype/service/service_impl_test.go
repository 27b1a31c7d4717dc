package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/cache"
	catalogdomain "github.com/smallbiznis/catalog/internal/catalog/domain"
	"github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/internal/catalogtype/repository"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type harness struct {
	svc   domain.Service
	db    *gorm.DB
	clock *clock.FakeClock
}

func setup(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.New(t, &domain.CatalogType{}, &catalogdomain.Catalog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
		Clock:  fake,
		Config: config.NewStaticCatalogConfigHolder(config.DefaultCatalogConfig()),
		Store:  cache.NewMemoryStore(fake),
		Types:  cache.NewTypeResolverCache(fake),
	})
	return &harness{svc: svc, db: conn, clock: fake}
}

func (h *harness) create(t *testing.T, req domain.CreateRequest) *domain.Response {
	t.Helper()
	h.clock.Advance(time.Minute)
	resp, err := h.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func codes(list []domain.Response) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, item.Code)
	}
	return out
}

func TestCreateDerivesCodeFromName(t *testing.T) {
	h := setup(t)

	resp := h.create(t, domain.CreateRequest{Name: "Daily Lottery", Description: strPtr("  draws  ")})

	assert.Equal(t, "daily_lottery", resp.Code)
	assert.Equal(t, "Daily Lottery", resp.Name)
	assert.True(t, resp.Enabled)
	require.NotNil(t, resp.Description)
	assert.Equal(t, "draws", *resp.Description)
	assert.Equal(t, "2024-01-01 12:01:00", resp.CreateTime)
	assert.NotEmpty(t, resp.ID)
}

func TestCreateValidates(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	_, err := h.svc.Create(ctx, domain.CreateRequest{Code: "Bad-Code", Name: "Bad"})
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	_, err = h.svc.Create(ctx, domain.CreateRequest{Code: "product", Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	long := make([]byte, domain.MaxCodeLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = h.svc.Create(ctx, domain.CreateRequest{Code: string(long), Name: "Long"})
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	h.create(t, domain.CreateRequest{Code: "product", Name: "Products"})
	_, err = h.svc.Create(ctx, domain.CreateRequest{Code: "product", Name: "Again"})
	assert.ErrorIs(t, err, domain.ErrCodeTaken)
}

func TestUpdateAndGet(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	created := h.create(t, domain.CreateRequest{Code: "article", Name: "Articles"})

	h.clock.Advance(time.Hour)
	updated, err := h.svc.Update(ctx, domain.UpdateRequest{
		ID:      created.ID,
		Name:    strPtr("Blog Articles"),
		Enabled: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Blog Articles", updated.Name)
	assert.False(t, updated.Enabled)
	assert.Equal(t, "article", updated.Code)

	got, err := h.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blog Articles", got.Name)
	assert.Equal(t, "2024-01-01 13:01:00", got.UpdateTime)

	_, err = h.svc.Get(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = h.svc.Get(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRefusesTypeInUse(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	used := h.create(t, domain.CreateRequest{Code: "product", Name: "Products"})
	unused := h.create(t, domain.CreateRequest{Code: "article", Name: "Articles"})

	usedID, err := snowflake.ParseString(used.ID)
	require.NoError(t, err)
	path := "1"
	require.NoError(t, h.db.Create(&catalogdomain.Catalog{
		ID:        1,
		TypeID:    usedID.Int64(),
		Name:      "Electronics",
		Path:      &path,
		Enabled:   true,
		CreatedAt: h.clock.Now(),
		UpdatedAt: h.clock.Now(),
	}).Error)

	assert.ErrorIs(t, h.svc.Delete(ctx, used.ID), domain.ErrInUse)
	require.NoError(t, h.svc.Delete(ctx, unused.ID))

	_, err = h.svc.Get(ctx, unused.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, h.svc.Delete(ctx, unused.ID), domain.ErrNotFound)
}

func TestListFiltersAndOrders(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.create(t, domain.CreateRequest{Code: "product", Name: "Products"})
	h.create(t, domain.CreateRequest{Code: "article", Name: "Articles", Description: strPtr("blog posts")})
	h.create(t, domain.CreateRequest{Code: "lottery", Name: "Lottery", Enabled: boolPtr(false)})

	resp, err := h.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"article", "product"}, codes(resp.List))
	assert.Equal(t, int64(2), resp.Pagination.Total)
	assert.Equal(t, 20, resp.Pagination.PageSize)
	assert.Nil(t, resp.List[0].CatalogCount)

	resp, err = h.svc.List(ctx, domain.ListRequest{EnabledOnly: boolPtr(false), OrderBy: "name", OrderDir: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"article", "lottery", "product"}, codes(resp.List))

	resp, err = h.svc.List(ctx, domain.ListRequest{Keyword: "blog", IncludeCatalogCount: true})
	require.NoError(t, err)
	require.Len(t, resp.List, 1)
	require.NotNil(t, resp.List[0].CatalogCount)
	assert.Equal(t, int64(0), *resp.List[0].CatalogCount)

	resp, err = h.svc.List(ctx, domain.ListRequest{EnabledOnly: boolPtr(false), PageSize: 2, Page: 2, OrderBy: "code", OrderDir: "ASC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"product"}, codes(resp.List))
	assert.False(t, resp.Pagination.HasMore)

	_, err = h.svc.List(ctx, domain.ListRequest{OrderBy: "id"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrderBy)

	_, err = h.svc.List(ctx, domain.ListRequest{OrderDir: "SIDEWAYS"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrderDir)
}

func TestListIsCachedUntilWrite(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.create(t, domain.CreateRequest{Code: "product", Name: "Products"})

	first, err := h.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, first.List, 1)

	now := h.clock.Now()
	require.NoError(t, h.db.Exec(
		`INSERT INTO catalog_types (id, code, name, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		99, "sneaky", "Sneaky", true, now, now,
	).Error)

	cached, err := h.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, cached.List, 1, "second call must be served from cache")

	h.create(t, domain.CreateRequest{Code: "article", Name: "Articles"})

	fresh, err := h.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, fresh.List, 3)
}
