package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/catalog/domain"
	"github.com/smallbiznis/catalog/internal/catalog/repository"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	typerepository "github.com/smallbiznis/catalog/internal/catalogtype/repository"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/lock"
	"github.com/smallbiznis/catalog/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingInvalidator struct {
	tags []string
}

func (r *recordingInvalidator) InvalidateTags(_ context.Context, tags ...string) error {
	r.tags = append(r.tags, tags...)
	return nil
}

type harness struct {
	svc         domain.Service
	db          *gorm.DB
	repo        domain.Repository
	locker      lock.Locker
	invalidator *recordingInvalidator
	types       map[string]*typedomain.CatalogType
}

// interleavingRepository runs hook once, just before the next attribute write.
type interleavingRepository struct {
	domain.Repository
	hook func()
}

func (r *interleavingRepository) UpdateAttributes(ctx context.Context, db *gorm.DB, node *domain.Catalog, columns ...string) error {
	if hook := r.hook; hook != nil {
		r.hook = nil
		hook()
	}
	return r.Repository.UpdateAttributes(ctx, db, node, columns...)
}

func setup(t *testing.T) *harness {
	t.Helper()
	return setupWith(t, repository.Provide())
}

func setupWith(t *testing.T, repo domain.Repository) *harness {
	t.Helper()
	conn := dbtest.New(t, &typedomain.CatalogType{}, &domain.Catalog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	locker := lock.NewLocalLocker(fake)
	invalidator := &recordingInvalidator{}

	h := &harness{
		svc: New(Params{
			DB:          conn,
			Log:         zap.NewNop(),
			GenID:       node,
			Repo:        repo,
			TypeRepo:    typerepository.Provide(),
			Clock:       fake,
			Config:      config.NewStaticCatalogConfigHolder(config.DefaultCatalogConfig()),
			Invalidator: invalidator,
			Locker:      locker,
		}),
		db:          conn,
		repo:        repo,
		locker:      locker,
		invalidator: invalidator,
		types:       map[string]*typedomain.CatalogType{},
	}

	for i, code := range []string{"product", "article"} {
		ct := &typedomain.CatalogType{
			ID:        int64(i + 1),
			Code:      code,
			Name:      code,
			Enabled:   true,
			CreatedAt: fake.Now(),
			UpdatedAt: fake.Now(),
		}
		require.NoError(t, conn.Create(ct).Error)
		h.types[code] = ct
	}
	return h
}

func (h *harness) create(t *testing.T, typeCode, name string, parent *domain.Item) *domain.Item {
	t.Helper()
	req := domain.CreateRequest{TypeCode: typeCode, Name: name}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	item, err := h.svc.Create(context.Background(), req)
	require.NoError(t, err)
	return item
}

func (h *harness) load(t *testing.T, id string) *domain.Catalog {
	t.Helper()
	parsed, err := snowflake.ParseString(id)
	require.NoError(t, err)
	c, err := h.repo.FindByID(context.Background(), h.db, parsed.Int64())
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func intPtr(v int) *int { return &v }

func TestCreateRootAndChild(t *testing.T) {
	h := setup(t)

	electronics := h.create(t, "product", "Electronics", nil)
	phones := h.create(t, "product", "Phones", electronics)

	assert.Equal(t, 0, electronics.Level)
	assert.Equal(t, 1, phones.Level)
	require.NotNil(t, phones.Path)
	assert.Equal(t, electronics.ID+"/"+phones.ID, *phones.Path)
	require.NotNil(t, phones.Parent)
	assert.Equal(t, electronics.ID, phones.Parent.ID)
	assert.Equal(t, "product", phones.Type.Code)

	got, err := h.svc.Get(context.Background(), electronics.ID)
	require.NoError(t, err)
	assert.True(t, got.HasChildren)

	assert.Contains(t, h.invalidator.tags, domain.TagCatalogTree)
	assert.Contains(t, h.invalidator.tags, domain.TypeTag(h.types["product"].ID))
	assert.Contains(t, h.invalidator.tags, "catalog_"+phones.ID)
}

func TestCreateAppendsSortOrder(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	first := h.create(t, "product", "First", nil)
	second := h.create(t, "product", "Second", nil)
	assert.Equal(t, 1, first.SortOrder)
	assert.Equal(t, 2, second.SortOrder)

	pinned, err := h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Pinned", SortOrder: intPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, 10, pinned.SortOrder)

	child := h.create(t, "product", "Child", first)
	assert.Equal(t, 1, child.SortOrder)

	otherType := h.create(t, "article", "Tech Articles", nil)
	assert.Equal(t, 1, otherType.SortOrder)
}

func TestCreateValidates(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	article := h.create(t, "article", "Tech Articles", nil)

	_, err := h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = h.svc.Create(ctx, domain.CreateRequest{Name: "Orphan"})
	assert.ErrorIs(t, err, domain.ErrTypeRequired)

	_, err = h.svc.Create(ctx, domain.CreateRequest{TypeCode: "missing", Name: "Orphan"})
	assert.ErrorIs(t, err, typedomain.ErrNotFound)

	_, err = h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Phones", ParentID: &article.ID})
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)

	missing := "123"
	_, err = h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Phones", ParentID: &missing})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)

	_, err = h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Phones", SortOrder: intPtr(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidSortOrder)
}

func TestMoveRewritesSubtree(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	electronics := h.create(t, "product", "Electronics", nil)
	computers := h.create(t, "product", "Computers", nil)
	phones := h.create(t, "product", "Phones", electronics)
	smart := h.create(t, "product", "Smartphones", phones)

	moved, err := h.svc.Move(ctx, domain.MoveRequest{ID: phones.ID, ParentID: &computers.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Level)
	assert.Equal(t, computers.ID+"/"+phones.ID, *moved.Path)
	assert.Equal(t, computers.ID, moved.Parent.ID)
	assert.True(t, moved.HasChildren)

	leaf := h.load(t, smart.ID)
	assert.Equal(t, 2, leaf.Level)
	assert.Equal(t, computers.ID+"/"+phones.ID+"/"+smart.ID, leaf.PathValue())

	root, err := h.svc.Move(ctx, domain.MoveRequest{ID: phones.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, root.Level)
	assert.Nil(t, root.Parent)
	assert.Equal(t, phones.ID, *root.Path)
	assert.Equal(t, 3, root.SortOrder)

	leaf = h.load(t, smart.ID)
	assert.Equal(t, 1, leaf.Level)
	assert.Equal(t, phones.ID+"/"+smart.ID, leaf.PathValue())
}

func TestMoveRejectsCycles(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := h.create(t, "product", "A", nil)
	b := h.create(t, "product", "B", a)
	c := h.create(t, "product", "C", b)

	_, err := h.svc.Move(ctx, domain.MoveRequest{ID: a.ID, ParentID: &c.ID})
	assert.ErrorIs(t, err, domain.ErrCyclicMove)

	_, err = h.svc.Move(ctx, domain.MoveRequest{ID: b.ID, ParentID: &b.ID})
	assert.ErrorIs(t, err, domain.ErrCyclicMove)

	article := h.create(t, "article", "Tech Articles", nil)
	_, err = h.svc.Move(ctx, domain.MoveRequest{ID: b.ID, ParentID: &article.ID})
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)

	assert.Equal(t, a.ID+"/"+b.ID+"/"+c.ID, h.load(t, c.ID).PathValue())
}

func TestMoveFailsWhileTreeLocked(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	a := h.create(t, "product", "A", nil)
	b := h.create(t, "product", "B", nil)

	key := TreeLockKey(h.types["product"].ID)
	token, ok, err := h.locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.Move(ctx, domain.MoveRequest{ID: b.ID, ParentID: &a.ID})
	assert.ErrorIs(t, err, domain.ErrMoveInProgress)

	require.NoError(t, h.locker.Release(ctx, key, token))
	_, err = h.svc.Move(ctx, domain.MoveRequest{ID: b.ID, ParentID: &a.ID})
	assert.NoError(t, err)
}

func TestUpdateAndDelete(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	root := h.create(t, "product", "Lottery", nil)
	child := h.create(t, "product", "Daily", root)
	h.create(t, "product", "Grandchild", child)

	meta := map[string]any{"max_daily_draws": 3}
	disabled := false
	updated, err := h.svc.Update(ctx, domain.UpdateRequest{
		ID:       child.ID,
		Name:     ptr("Daily Lottery"),
		Enabled:  &disabled,
		Metadata: &meta,
	})
	require.NoError(t, err)
	assert.Equal(t, "Daily Lottery", updated.Name)
	assert.False(t, updated.Enabled)
	assert.Contains(t, updated.Metadata, "max_daily_draws")
	assert.Equal(t, child.Path, updated.Path)

	require.NoError(t, h.svc.Delete(ctx, root.ID))
	_, err = h.svc.Get(ctx, child.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var total int64
	require.NoError(t, h.db.Model(&domain.Catalog{}).Count(&total).Error)
	assert.Zero(t, total)

	assert.ErrorIs(t, h.svc.Delete(ctx, root.ID), domain.ErrNotFound)
	assert.ErrorIs(t, h.svc.Delete(ctx, "nope"), domain.ErrInvalidID)
}

func TestStructuralWritesRespectTreeLock(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	parent := h.create(t, "product", "Electronics", nil)

	key := TreeLockKey(h.types["product"].ID)
	token, ok, err := h.locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Phones", ParentID: &parent.ID})
	assert.ErrorIs(t, err, domain.ErrMoveInProgress)
	assert.ErrorIs(t, h.svc.Delete(ctx, parent.ID), domain.ErrMoveInProgress)

	root, err := h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Computers"})
	require.NoError(t, err)
	assert.Equal(t, 0, root.Level)

	require.NoError(t, h.locker.Release(ctx, key, token))
	child := h.create(t, "product", "Phones", parent)
	assert.Equal(t, parent.ID+"/"+child.ID, *child.Path)
}

func TestUpdateKeepsConcurrentMove(t *testing.T) {
	repo := &interleavingRepository{Repository: repository.Provide()}
	h := setupWith(t, repo)
	ctx := context.Background()

	x := h.create(t, "product", "X", nil)
	xChild := h.create(t, "product", "XChild", x)
	y := h.create(t, "product", "Y", nil)

	repo.hook = func() {
		_, err := h.svc.Move(ctx, domain.MoveRequest{ID: x.ID, ParentID: &y.ID})
		require.NoError(t, err)
	}
	updated, err := h.svc.Update(ctx, domain.UpdateRequest{ID: x.ID, Name: ptr("X renamed")})
	require.NoError(t, err)
	assert.Equal(t, "X renamed", updated.Name)
	assert.Equal(t, 1, updated.Level)
	assert.Equal(t, y.ID+"/"+x.ID, *updated.Path)
	require.NotNil(t, updated.Parent)
	assert.Equal(t, y.ID, updated.Parent.ID)

	stored := h.load(t, x.ID)
	assert.Equal(t, "X renamed", stored.Name)
	assert.Equal(t, 1, stored.Level)
	assert.Equal(t, 1, stored.SortOrder)
	require.NotNil(t, stored.ParentID)
	assert.Equal(t, h.load(t, y.ID).ID, *stored.ParentID)

	leaf := h.load(t, xChild.ID)
	assert.Equal(t, 2, leaf.Level)
	assert.Equal(t, y.ID+"/"+x.ID+"/"+xChild.ID, leaf.PathValue())
}

func TestUpdateClearsMetadata(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	meta := map[string]any{"points_required": 10}
	item, err := h.svc.Create(ctx, domain.CreateRequest{TypeCode: "product", Name: "Daily", Metadata: meta})
	require.NoError(t, err)

	empty := map[string]any{}
	updated, err := h.svc.Update(ctx, domain.UpdateRequest{ID: item.ID, Metadata: &empty})
	require.NoError(t, err)
	assert.Empty(t, updated.Metadata)

	var nulls int64
	require.NoError(t, h.db.Raw(`SELECT COUNT(*) FROM catalogs WHERE metadata IS NULL`).Scan(&nulls).Error)
	assert.Equal(t, int64(1), nulls)
}

func ptr[T any](v T) *T { return &v }
