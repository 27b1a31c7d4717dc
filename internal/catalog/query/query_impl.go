package query

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/cache"
	"github.com/smallbiznis/catalog/internal/catalog/domain"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	"github.com/smallbiznis/catalog/pkg/db/option"
	"github.com/smallbiznis/catalog/pkg/db/pagination"
	"github.com/smallbiznis/catalog/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	QueryList   = "catalog.list"
	QueryDetail = "catalog.detail"
	QueryTree   = "catalog.tree"

	MinTreeLevel = 1
	MaxTreeLevel = 10
)

var listOrderColumns = map[string]string{
	"sortOrder":  "sort_order",
	"name":       "name",
	"createTime": "created_at",
	"updateTime": "updated_at",
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	TypeRepo typedomain.Repository
	Types    cache.TypeResolverCache
	Config   *config.CatalogConfigHolder
	Store    cache.Store           `optional:"true"`
	Metrics  *metrics.QueryMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	typeRepo typedomain.Repository
	types    cache.TypeResolverCache
	cfg      *config.CatalogConfigHolder
	metrics  *metrics.QueryMetrics
	tracer   trace.Tracer

	detail *cache.Cacheable[domain.DetailRequest, *domain.DetailResponse]
	tree   *cache.Cacheable[domain.TreeRequest, *domain.TreeResponse]
}

func New(p Params) domain.QueryService {
	s := &Service{
		db:       p.DB,
		log:      p.Log.Named("catalog.query"),
		repo:     p.Repo,
		typeRepo: p.TypeRepo,
		types:    p.Types,
		cfg:      p.Config,
		metrics:  p.Metrics,
		tracer:   otel.Tracer("catalog/query"),
	}

	s.detail = cache.NewCacheable(p.Store, cache.Policy[domain.DetailRequest]{
		Name: QueryDetail,
		TTL:  func(domain.DetailRequest) time.Duration { return s.cfg.Get().Cache.DetailTTL },
		Tags: func(req domain.DetailRequest) []string {
			return []string{domain.TagCatalog, "catalog_" + req.CatalogID}
		},
	}, s.loadDetail, p.Metrics, s.log)

	s.tree = cache.NewCacheable(p.Store, cache.Policy[domain.TreeRequest]{
		Name: QueryTree,
		TTL:  func(domain.TreeRequest) time.Duration { return s.cfg.Get().Cache.TreeTTL },
		Tags: func(req domain.TreeRequest) []string {
			tags := []string{domain.TagCatalog, domain.TagCatalogTree}
			if req.TypeID != "" {
				tags = append(tags, "catalog_type_"+req.TypeID)
			}
			return tags
		},
	}, s.loadTree, p.Metrics, s.log)

	return s
}

// List returns one page of catalogs. It is never cached.
func (s *Service) List(ctx context.Context, req domain.ListRequest) (resp *domain.ListResponse, err error) {
	ctx, finish := s.start(ctx, QueryList)
	defer func() { finish(err) }()

	queryCfg := s.cfg.Get().Query
	page, err := pagination.Normalize(req.Page, req.PageSize, queryCfg.DefaultPageSize, queryCfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	sort, err := listSort(req.OrderBy, req.OrderDir)
	if err != nil {
		return nil, err
	}
	enabledOnly := boolOr(req.EnabledOnly, true)

	filter := domain.ListFilter{
		Keyword:     strings.TrimSpace(req.Keyword),
		EnabledOnly: enabledOnly,
		Sort:        sort,
	}

	if code := strings.TrimSpace(req.TypeCode); code != "" {
		catalogType, err := s.typeByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if catalogType == nil {
			return nil, typedomain.ErrNotFound
		}
		if enabledOnly && !catalogType.Enabled {
			return nil, typedomain.ErrDisabled
		}
		filter.TypeID = &catalogType.ID
	}

	switch {
	case req.ParentID == nil:
		filter.RootsOnly = true
	case strings.TrimSpace(*req.ParentID) != "":
		parentID, err := parseID(*req.ParentID, domain.ErrInvalidParentID)
		if err != nil {
			return nil, err
		}
		parent, err := s.repo.FindByID(ctx, s.db, parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, domain.ErrParentNotFound
		}
		if enabledOnly && !parent.Enabled {
			return nil, domain.ErrParentDisabled
		}
		filter.ParentID = &parent.ID
	}

	items, info, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(items))
	var parentIDs []int64
	for _, item := range items {
		ids = append(ids, item.ID)
		if item.ParentID != nil {
			parentIDs = append(parentIDs, *item.ParentID)
		}
	}

	counts, err := s.repo.CountChildren(ctx, s.db, ids, enabledOnly)
	if err != nil {
		return nil, err
	}
	parents, err := s.repo.FindByIDs(ctx, s.db, parentIDs)
	if err != nil {
		return nil, err
	}
	parentIndex := make(map[int64]*domain.Catalog, len(parents))
	for _, parent := range parents {
		parentIndex[parent.ID] = parent
	}

	resp = &domain.ListResponse{
		List:       make([]domain.Item, 0, len(items)),
		Pagination: info,
	}
	for _, item := range items {
		catalogType, err := s.typeByID(ctx, item.TypeID)
		if err != nil {
			return nil, err
		}
		var parent *domain.Catalog
		if item.ParentID != nil {
			parent = parentIndex[*item.ParentID]
		}
		var childrenCount *int64
		if req.IncludeChildrenCount {
			count := counts[item.ID]
			childrenCount = &count
		}
		resp.List = append(resp.List, domain.ToItem(item, catalogType, parent, counts[item.ID] > 0, childrenCount))
	}
	return resp, nil
}

// Detail returns one catalog with the optional neighbourhood expansions.
func (s *Service) Detail(ctx context.Context, req domain.DetailRequest) (resp *domain.DetailResponse, err error) {
	ctx, finish := s.start(ctx, QueryDetail)
	defer func() { finish(err) }()

	id, err := parseID(req.CatalogID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	enabledOnly := boolOr(req.EnabledOnly, true)

	normalized := domain.DetailRequest{
		CatalogID:        formatID(id),
		IncludeAncestors: req.IncludeAncestors,
		IncludeChildren:  req.IncludeChildren,
		IncludeSiblings:  req.IncludeSiblings,
		EnabledOnly:      &enabledOnly,
	}
	return s.detail.Get(ctx, normalized)
}

func (s *Service) loadDetail(ctx context.Context, req domain.DetailRequest) (*domain.DetailResponse, error) {
	id, err := parseID(req.CatalogID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	enabledOnly := boolOr(req.EnabledOnly, true)

	node, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, domain.ErrNotFound
	}
	if enabledOnly && !node.Enabled {
		return nil, domain.ErrDisabled
	}

	catalogType, err := s.typeByID(ctx, node.TypeID)
	if err != nil {
		return nil, err
	}

	resp := &domain.DetailResponse{
		ID:          node.IDString(),
		Name:        node.Name,
		Description: node.Description,
		Level:       node.Level,
		Path:        node.Path,
		SortOrder:   node.SortOrder,
		Enabled:     node.Enabled,
		Thumb:       node.Thumb,
		Type:        domain.ToTypeDetail(catalogType),
		CreateTime:  typedomain.FormatTime(node.CreatedAt),
		UpdateTime:  typedomain.FormatTime(node.UpdatedAt),
	}
	if len(node.Metadata) > 0 {
		resp.Metadata = node.Metadata
	}

	if req.IncludeAncestors {
		if err := s.repo.LoadAncestors(ctx, s.db, node); err != nil {
			return nil, err
		}
		ancestors := make([]domain.AncestorItem, 0, node.Level)
		for _, ancestor := range node.Ancestors() {
			ancestors = append(ancestors, domain.ToAncestorItem(ancestor))
		}
		resp.Ancestors = &ancestors
	}

	parent := node.Parent
	if parent == nil && node.ParentID != nil {
		if parent, err = s.repo.FindByID(ctx, s.db, *node.ParentID); err != nil {
			return nil, err
		}
	}
	resp.Parent = domain.ToParentSummary(parent)

	var children, siblings []*domain.Catalog
	if req.IncludeChildren {
		if enabledOnly {
			children, err = s.repo.FindEnabledChildrenOf(ctx, s.db, node)
		} else {
			children, err = s.repo.FindChildrenOf(ctx, s.db, node)
		}
		if err != nil {
			return nil, err
		}
	}
	if req.IncludeSiblings && node.ParentID != nil {
		siblings, err = s.repo.FindSiblings(ctx, s.db, node)
		if err != nil {
			return nil, err
		}
		if enabledOnly {
			siblings = enabledNodes(siblings)
		}
	}

	ids := make([]int64, 0, len(children)+len(siblings))
	for _, n := range children {
		ids = append(ids, n.ID)
	}
	for _, n := range siblings {
		ids = append(ids, n.ID)
	}
	counts, err := s.repo.CountChildren(ctx, s.db, ids, enabledOnly)
	if err != nil {
		return nil, err
	}

	if req.IncludeChildren {
		summaries := nodeSummaries(children, counts)
		resp.Children = &summaries
	}
	if req.IncludeSiblings && node.ParentID != nil {
		summaries := nodeSummaries(siblings, counts)
		resp.Siblings = &summaries
	}
	return resp, nil
}

// Tree renders nested roots. Children are exposed while a node's level is
// below maxLevel-1 and rendered empty past that depth.
func (s *Service) Tree(ctx context.Context, req domain.TreeRequest) (resp *domain.TreeResponse, err error) {
	ctx, finish := s.start(ctx, QueryTree)
	defer func() { finish(err) }()

	maxLevel := req.MaxLevel
	if maxLevel == 0 {
		maxLevel = s.cfg.Get().Query.DefaultTreeMaxLevel
	}
	if maxLevel < MinTreeLevel || maxLevel > MaxTreeLevel {
		return nil, domain.ErrInvalidMaxLevel
	}
	enabledOnly := boolOr(req.EnabledOnly, true)

	normalized := domain.TreeRequest{
		MaxLevel:        maxLevel,
		EnabledOnly:     &enabledOnly,
		IncludeMetadata: req.IncludeMetadata,
	}
	if raw := strings.TrimSpace(req.TypeID); raw != "" {
		typeID, err := parseID(raw, typedomain.ErrInvalidID)
		if err != nil {
			return nil, err
		}
		normalized.TypeID = formatID(typeID)
	}
	return s.tree.Get(ctx, normalized)
}

func (s *Service) loadTree(ctx context.Context, req domain.TreeRequest) (*domain.TreeResponse, error) {
	enabledOnly := boolOr(req.EnabledOnly, true)
	filter := domain.ForestFilter{EnabledOnly: enabledOnly, MaxLevel: req.MaxLevel}
	meta := domain.TreeMetadata{}

	if req.TypeID != "" {
		typeID, err := parseID(req.TypeID, typedomain.ErrInvalidID)
		if err != nil {
			return nil, err
		}
		catalogType, err := s.typeByID(ctx, typeID)
		if err != nil {
			return nil, err
		}
		if catalogType == nil {
			return nil, typedomain.ErrNotFound
		}
		if enabledOnly && !catalogType.Enabled {
			return nil, typedomain.ErrDisabled
		}
		filter.TypeID = &catalogType.ID
		typeIDValue, typeName := req.TypeID, catalogType.Name
		meta.TypeID = &typeIDValue
		meta.TypeName = &typeName
	}

	rows, err := s.repo.FindForest(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	roots := domain.BuildForest(rows)

	renderer := treeRenderer{maxLevel: req.MaxLevel, includeMetadata: req.IncludeMetadata}
	tree := renderer.render(roots)
	meta.TotalNodes = renderer.total
	meta.MaxLevel = renderer.deepest

	s.metrics.ObserveTreeNodes(filter.TypeID != nil, renderer.total)
	return &domain.TreeResponse{Tree: tree, Metadata: meta}, nil
}

type treeRenderer struct {
	maxLevel        int
	includeMetadata bool
	total           int
	deepest         int
}

func (r *treeRenderer) render(nodes []*domain.Catalog) []domain.TreeNode {
	out := make([]domain.TreeNode, 0, len(nodes))
	for _, node := range nodes {
		r.total++
		if node.Level > r.deepest {
			r.deepest = node.Level
		}

		item := domain.TreeNode{
			ID:          node.IDString(),
			Name:        node.Name,
			Description: node.Description,
			Level:       node.Level,
			Path:        node.Path,
			SortOrder:   node.SortOrder,
			Enabled:     node.Enabled,
			HasChildren: node.HasChildren(),
			Children:    []domain.TreeNode{},
		}
		if r.includeMetadata && len(node.Metadata) > 0 {
			item.Metadata = node.Metadata
		}
		if node.HasChildren() && node.Level < r.maxLevel-1 {
			item.Children = r.render(node.Children)
		}
		out = append(out, item)
	}
	return out
}

func (s *Service) typeByID(ctx context.Context, id int64) (*typedomain.CatalogType, error) {
	if t, ok := s.types.GetByID(id); ok {
		return t, nil
	}
	t, err := s.typeRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	s.types.Set(t)
	return t, nil
}

func (s *Service) typeByCode(ctx context.Context, code string) (*typedomain.CatalogType, error) {
	if t, ok := s.types.GetByCode(code); ok {
		return t, nil
	}
	t, err := s.typeRepo.FindOneByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	s.types.Set(t)
	return t, nil
}

// start opens a span for a query and returns the callback that closes it.
func (s *Service) start(ctx context.Context, name string) (context.Context, func(error)) {
	begin := time.Now()
	ctx = ctxlogger.ContextWithOperation(ctx, name)
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("query", name)))

	return ctx, func(err error) {
		s.metrics.ObserveQuery(name, err, time.Since(begin))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			ctxlogger.WithContext(ctx, s.log).Debug("query rejected", zap.Error(err))
		}
		span.End()
	}
}

func listSort(orderBy, orderDir string) (option.Sort, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		orderBy = "sortOrder"
	}
	if _, ok := listOrderColumns[orderBy]; !ok {
		return nil, domain.ErrInvalidOrderBy
	}

	orderDir = strings.ToUpper(strings.TrimSpace(orderDir))
	if orderDir == "" {
		orderDir = "ASC"
	}
	if orderDir != "ASC" && orderDir != "DESC" {
		return nil, domain.ErrInvalidOrderDir
	}
	return option.WithQuerySortBy(orderBy, orderDir, listOrderColumns), nil
}

func nodeSummaries(nodes []*domain.Catalog, counts map[int64]int64) []domain.NodeSummary {
	out := make([]domain.NodeSummary, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, domain.ToNodeSummary(n, counts[n.ID] > 0))
	}
	return out
}

func enabledNodes(nodes []*domain.Catalog) []*domain.Catalog {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Enabled {
			out = append(out, n)
		}
	}
	return out
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func parseID(raw string, invalid error) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id.Int64() <= 0 {
		return 0, invalid
	}
	return id.Int64(), nil
}

func formatID(id int64) string {
	return snowflake.ID(id).String()
}
