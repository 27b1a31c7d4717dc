package service

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/catalog/internal/cache"
	"github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"github.com/smallbiznis/catalog/pkg/db"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	pkglog "github.com/smallbiznis/catalog/pkg/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TagCatalogType     = "catalog_type"
	TagCatalogTypeList = "catalog_type_list"
)

var orderColumns = map[string]string{
	"name":       "name",
	"code":       "code",
	"createTime": "created_at",
	"updateTime": "updated_at",
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Config  *config.CatalogConfigHolder
	Store   cache.Store
	Types   cache.TypeResolverCache
	Metrics *metrics.QueryMetrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
	cfg   *config.CatalogConfigHolder
	store cache.Store
	types cache.TypeResolverCache
	list  *cache.Cacheable[domain.ListRequest, *domain.ListResponse]
}

func New(p Params) domain.Service {
	s := &Service{
		db:    p.DB,
		log:   p.Log.Named("catalogtype.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,
		store: p.Store,
		types: p.Types,
	}
	s.list = cache.NewCacheable(p.Store, cache.Policy[domain.ListRequest]{
		Name: "catalog_type.list",
		TTL:  func(domain.ListRequest) time.Duration { return s.cfg.Get().Cache.TypeListTTL },
		Tags: func(domain.ListRequest) []string { return []string{TagCatalogType, TagCatalogTypeList} },
	}, s.loadList, p.Metrics, s.log)
	return s
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxNameLength {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = codeFromName(name)
	}
	if !domain.ValidCode(code) {
		return nil, domain.ErrInvalidCode
	}

	existing, err := s.repo.FindOneByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrCodeTaken
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := s.clock.Now()
	t := &domain.CatalogType{
		ID:          s.genID.Generate().Int64(),
		Code:        code,
		Name:        name,
		Description: trimmedOrNil(req.Description),
		Enabled:     enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, t); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeTaken
		}
		return nil, err
	}

	s.invalidate(ctx, t.ID)
	resp := toResponse(t, nil)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || utf8.RuneCountInString(name) > domain.MaxNameLength {
			return nil, domain.ErrInvalidName
		}
		t.Name = name
	}
	if req.Description != nil {
		t.Description = trimmedOrNil(req.Description)
	}
	if req.Enabled != nil {
		t.Enabled = *req.Enabled
	}
	t.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, t); err != nil {
		return nil, err
	}

	s.invalidate(ctx, t.ID)
	resp := toResponse(t, nil)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	typeID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	t, err := s.repo.FindByID(ctx, s.db, typeID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(t, nil)
	return &resp, nil
}

// Delete removes a type that owns no catalogs. Catalogs are never removed implicitly.
func (s *Service) Delete(ctx context.Context, id string) error {
	typeID, err := parseID(id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.repo.FindByID(ctx, tx, typeID)
		if err != nil {
			return err
		}
		if t == nil {
			return domain.ErrNotFound
		}

		counts, err := s.repo.CountCatalogs(ctx, tx, []int64{typeID})
		if err != nil {
			return err
		}
		if counts[typeID] > 0 {
			return domain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, typeID)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, typeID)
	return nil
}

// List runs the catalog type list query through the read-through cache.
func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	normalized, err := s.normalizeList(req)
	if err != nil {
		return nil, err
	}
	return s.list.Get(ctx, normalized)
}

func (s *Service) normalizeList(req domain.ListRequest) (domain.ListRequest, error) {
	queryCfg := s.cfg.Get().Query

	page, err := pagination.Normalize(req.Page, req.PageSize, queryCfg.DefaultPageSize, queryCfg.MaxPageSize)
	if err != nil {
		return req, err
	}

	orderBy := strings.TrimSpace(req.OrderBy)
	if orderBy == "" {
		orderBy = "createTime"
	}
	if _, ok := orderColumns[orderBy]; !ok {
		return req, domain.ErrInvalidOrderBy
	}

	orderDir := strings.ToUpper(strings.TrimSpace(req.OrderDir))
	if orderDir == "" {
		orderDir = "DESC"
	}
	if orderDir != "ASC" && orderDir != "DESC" {
		return req, domain.ErrInvalidOrderDir
	}

	enabledOnly := true
	if req.EnabledOnly != nil {
		enabledOnly = *req.EnabledOnly
	}

	return domain.ListRequest{
		Keyword:             strings.TrimSpace(req.Keyword),
		EnabledOnly:         &enabledOnly,
		IncludeCatalogCount: req.IncludeCatalogCount,
		OrderBy:             orderBy,
		OrderDir:            orderDir,
		Page:                page.Number,
		PageSize:            page.Size,
	}, nil
}

func (s *Service) loadList(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	sort := option.WithQuerySortBy(req.OrderBy, req.OrderDir, orderColumns)
	filter := domain.ListFilter{
		Keyword:     req.Keyword,
		EnabledOnly: *req.EnabledOnly,
		SortColumn:  sort[0].Column,
		SortDesc:    sort[0].Desc,
	}

	items, info, err := s.repo.List(ctx, s.db, filter, pagination.Page{Number: req.Page, Size: req.PageSize})
	if err != nil {
		return nil, err
	}

	var counts map[int64]int64
	if req.IncludeCatalogCount {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		if counts, err = s.repo.CountCatalogs(ctx, s.db, ids); err != nil {
			return nil, err
		}
	}

	resp := &domain.ListResponse{
		List:       make([]domain.Response, 0, len(items)),
		Pagination: info,
	}
	for _, item := range items {
		var count *int64
		if counts != nil {
			value := counts[item.ID]
			count = &value
		}
		resp.List = append(resp.List, toResponse(item, count))
	}
	return resp, nil
}

func (s *Service) invalidate(ctx context.Context, typeID int64) {
	s.types.Invalidate()
	tags := []string{TagCatalogType, TagCatalogTypeList, "catalog_type_" + strconv.FormatInt(typeID, 10)}
	if err := s.store.InvalidateTags(ctx, tags...); err != nil {
		pkglog.With(ctx, s.log).Warn("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

func toResponse(t *domain.CatalogType, catalogCount *int64) domain.Response {
	return domain.Response{
		ID:           strconv.FormatInt(t.ID, 10),
		Code:         t.Code,
		Name:         t.Name,
		Description:  t.Description,
		Enabled:      t.Enabled,
		CreateTime:   domain.FormatTime(t.CreatedAt),
		UpdateTime:   domain.FormatTime(t.UpdatedAt),
		CatalogCount: catalogCount,
	}
}

// codeFromName derives a type code such as "daily_lottery" from "Daily Lottery".
func codeFromName(name string) string {
	code := strings.ReplaceAll(slug.Make(name), "-", "_")
	if len(code) > domain.MaxCodeLength {
		code = strings.TrimRight(code[:domain.MaxCodeLength], "_")
	}
	return code
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id.Int64() <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
