package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/catalog/internal/cache"
	"github.com/smallbiznis/catalog/internal/catalog/domain"
	typedomain "github.com/smallbiznis/catalog/internal/catalogtype/domain"
	"github.com/smallbiznis/catalog/internal/clock"
	"github.com/smallbiznis/catalog/internal/config"
	"github.com/smallbiznis/catalog/internal/lock"
	"github.com/smallbiznis/catalog/internal/observability/metrics"
	pkglog "github.com/smallbiznis/catalog/pkg/log"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	TypeRepo    typedomain.Repository
	Clock       clock.Clock
	Config      *config.CatalogConfigHolder
	Invalidator cache.Invalidator
	Locker      lock.Locker
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	typeRepo    typedomain.Repository
	clock       clock.Clock
	cfg         *config.CatalogConfigHolder
	invalidator cache.Invalidator
	locker      lock.Locker
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("catalog.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		typeRepo:    p.TypeRepo,
		clock:       p.Clock,
		cfg:         p.Config,
		invalidator: p.Invalidator,
		locker:      p.Locker,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Item, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if err := validateThumb(req.Thumb); err != nil {
		return nil, err
	}
	if req.SortOrder != nil && *req.SortOrder < 0 {
		return nil, domain.ErrInvalidSortOrder
	}

	catalogType, err := s.resolveType(ctx, req.TypeID, req.TypeCode)
	if err != nil {
		return nil, err
	}

	var parentID *int64
	if req.ParentID != nil {
		value, err := parseID(*req.ParentID, domain.ErrInvalidParentID)
		if err != nil {
			return nil, err
		}
		parentID = &value
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := s.clock.Now()
	node := &domain.Catalog{
		TypeID:      catalogType.ID,
		Name:        name,
		Description: trimmedOrNil(req.Description),
		Enabled:     enabled,
		Metadata:    req.Metadata,
		Thumb:       trimmedOrNil(req.Thumb),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	node.AssignID(s.genID.Generate().Int64())

	var parent *domain.Catalog
	insert := func(tx *gorm.DB) error {
		if parentID != nil {
			var err error
			parent, err = s.repo.FindByID(ctx, tx, *parentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return domain.ErrParentNotFound
			}
			if parent.TypeID != catalogType.ID {
				return domain.ErrTypeMismatch
			}
		}

		if req.SortOrder != nil {
			node.SortOrder = *req.SortOrder
		} else {
			maxOrder, err := s.repo.GetMaxSortOrder(ctx, tx, parentID, catalogType.ID)
			if err != nil {
				return err
			}
			node.SortOrder = maxOrder + 1
		}

		node.SetParent(parent)
		if err := checkPaths(node); err != nil {
			return err
		}
		return s.repo.Save(ctx, tx, node, false)
	}

	// A child's path derives from its parent's, which only holds still under the tree lock.
	if parentID == nil {
		err = s.db.WithContext(ctx).Transaction(insert)
	} else {
		err = s.withTreeLock(ctx, catalogType.ID, catalogType.Code, func() error {
			return s.db.WithContext(ctx).Transaction(insert)
		})
	}
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, "create", catalogType, node.ID)
	pkglog.With(ctx, s.log).Info("catalog created",
		zap.Int64("catalog_id", node.ID),
		zap.String("type_code", catalogType.Code),
		zap.Int("level", node.Level),
	)
	item := domain.ToItem(node, catalogType, parent, false, nil)
	return &item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Item, error) {
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	node, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, domain.ErrNotFound
	}

	var columns []string
	if req.Name != nil {
		name, err := validateName(*req.Name)
		if err != nil {
			return nil, err
		}
		node.Name = name
		columns = append(columns, "name")
	}
	if req.Description != nil {
		node.Description = trimmedOrNil(req.Description)
		columns = append(columns, "description")
	}
	if req.SortOrder != nil {
		if *req.SortOrder < 0 {
			return nil, domain.ErrInvalidSortOrder
		}
		node.SortOrder = *req.SortOrder
		columns = append(columns, "sort_order")
	}
	if req.Enabled != nil {
		node.Enabled = *req.Enabled
		columns = append(columns, "enabled")
	}
	if req.Metadata != nil {
		node.Metadata = *req.Metadata
		columns = append(columns, "metadata")
	}
	if req.Thumb != nil {
		if err := validateThumb(req.Thumb); err != nil {
			return nil, err
		}
		node.Thumb = trimmedOrNil(req.Thumb)
		columns = append(columns, "thumb")
	}
	node.UpdatedAt = s.clock.Now()

	// Tree columns are owned by Move; node may already be stale on those.
	if err := s.repo.UpdateAttributes(ctx, s.db, node, columns...); err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}

	catalogType, err := s.typeRepo.FindByID(ctx, s.db, current.TypeID)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, "update", catalogType, current.ID)
	return s.item(ctx, current, catalogType)
}

// Move reattaches a node and rewrites level and path for its whole subtree in
// one transaction while holding the tree lock of its type.
func (s *Service) Move(ctx context.Context, req domain.MoveRequest) (*domain.Item, error) {
	id, err := parseID(req.ID, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	var parentID *int64
	if req.ParentID != nil {
		value, err := parseID(*req.ParentID, domain.ErrInvalidParentID)
		if err != nil {
			return nil, err
		}
		parentID = &value
	}
	if req.SortOrder != nil && *req.SortOrder < 0 {
		return nil, domain.ErrInvalidSortOrder
	}

	node, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, domain.ErrNotFound
	}
	catalogType, err := s.typeRepo.FindByID(ctx, s.db, node.TypeID)
	if err != nil {
		return nil, err
	}
	typeCode := ""
	if catalogType != nil {
		typeCode = catalogType.Code
	}

	var moved *domain.Catalog
	var subtree int
	err = s.withTreeLock(ctx, node.TypeID, typeCode, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.repo.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrNotFound
			}

			var parent *domain.Catalog
			if parentID != nil {
				parent, err = s.repo.FindByID(ctx, tx, *parentID)
				if err != nil {
					return err
				}
				if parent == nil {
					return domain.ErrParentNotFound
				}
				if parent.TypeID != current.TypeID {
					return domain.ErrTypeMismatch
				}
				if isSelfOrDescendant(parent, current) {
					return domain.ErrCyclicMove
				}
			}

			if err := s.repo.LoadSubtree(ctx, tx, current); err != nil {
				return err
			}

			sameParent := sameParentID(current.ParentID, parentID)
			switch {
			case req.SortOrder != nil:
				current.SortOrder = *req.SortOrder
			case !sameParent:
				maxOrder, err := s.repo.GetMaxSortOrder(ctx, tx, parentID, current.TypeID)
				if err != nil {
					return err
				}
				current.SortOrder = maxOrder + 1
			}

			current.SetParent(parent)
			if err := checkPaths(current); err != nil {
				return err
			}
			current.UpdatedAt = s.clock.Now()

			if err := s.repo.Save(ctx, tx, current, false); err != nil {
				return err
			}
			moved = current
			subtree = len(current.Subtree())
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, "move", catalogType, moved.ID)
	s.metrics.RecordMovedNodes(ctx, typeCode, subtree)
	pkglog.With(ctx, s.log).Info("catalog moved",
		zap.Int64("catalog_id", moved.ID),
		zap.Int("subtree_size", subtree),
		zap.Int("level", moved.Level),
	)
	return s.item(ctx, moved, catalogType)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	catalogID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return err
	}

	node, err := s.repo.FindByID(ctx, s.db, catalogID)
	if err != nil {
		return err
	}
	if node == nil {
		return domain.ErrNotFound
	}

	catalogType, err := s.typeRepo.FindByID(ctx, s.db, node.TypeID)
	if err != nil {
		return err
	}
	typeCode := ""
	if catalogType != nil {
		typeCode = catalogType.Code
	}

	// The descendant sweep matches on path, so it has to see the path a move may have just rewritten.
	err = s.withTreeLock(ctx, node.TypeID, typeCode, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := s.repo.FindByID(ctx, tx, catalogID)
			if err != nil {
				return err
			}
			if current == nil {
				return domain.ErrNotFound
			}
			return s.repo.Remove(ctx, tx, current, false)
		})
	})
	if err != nil {
		return err
	}

	s.afterWrite(ctx, "delete", catalogType, node.ID)
	return nil
}

// withTreeLock runs fn while holding the restructuring lock of a catalog type.
func (s *Service) withTreeLock(ctx context.Context, typeID int64, typeCode string, fn func() error) error {
	key := TreeLockKey(typeID)
	token, ok, err := s.locker.TryLock(ctx, key, s.cfg.Get().Lock.MoveTTL)
	if err != nil {
		return err
	}
	if !ok {
		s.metrics.RecordLockContention(ctx, typeCode)
		return domain.ErrMoveInProgress
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.log.Warn("release tree lock failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

// TreeLockKey names the lock serializing structural writes within one catalog type.
func TreeLockKey(typeID int64) string {
	return "catalog:move:" + domain.TypeTag(typeID)
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Item, error) {
	catalogID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	node, err := s.repo.FindByID(ctx, s.db, catalogID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, domain.ErrNotFound
	}

	catalogType, err := s.typeRepo.FindByID(ctx, s.db, node.TypeID)
	if err != nil {
		return nil, err
	}
	return s.item(ctx, node, catalogType)
}

func (s *Service) resolveType(ctx context.Context, rawID, code string) (*typedomain.CatalogType, error) {
	var (
		catalogType *typedomain.CatalogType
		err         error
	)
	switch {
	case strings.TrimSpace(rawID) != "":
		id, parseErr := parseID(rawID, typedomain.ErrInvalidID)
		if parseErr != nil {
			return nil, parseErr
		}
		catalogType, err = s.typeRepo.FindByID(ctx, s.db, id)
	case strings.TrimSpace(code) != "":
		catalogType, err = s.typeRepo.FindOneByCode(ctx, s.db, strings.TrimSpace(code))
	default:
		return nil, domain.ErrTypeRequired
	}
	if err != nil {
		return nil, err
	}
	if catalogType == nil {
		return nil, typedomain.ErrNotFound
	}
	return catalogType, nil
}

func (s *Service) item(ctx context.Context, node *domain.Catalog, catalogType *typedomain.CatalogType) (*domain.Item, error) {
	var parent *domain.Catalog
	if node.ParentID != nil {
		var err error
		parent, err = s.repo.FindByID(ctx, s.db, *node.ParentID)
		if err != nil {
			return nil, err
		}
	}
	counts, err := s.repo.CountChildren(ctx, s.db, []int64{node.ID}, false)
	if err != nil {
		return nil, err
	}
	item := domain.ToItem(node, catalogType, parent, counts[node.ID] > 0, nil)
	return &item, nil
}

func (s *Service) afterWrite(ctx context.Context, operation string, catalogType *typedomain.CatalogType, catalogID int64) {
	tags := []string{domain.TagCatalog, domain.TagCatalogTree, domain.CatalogTag(catalogID)}
	typeCode := ""
	if catalogType != nil {
		typeCode = catalogType.Code
		tags = append(tags, domain.TypeTag(catalogType.ID))
	}
	s.metrics.RecordMutation(ctx, operation, typeCode)

	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateTags(ctx, tags...); err != nil {
		pkglog.With(ctx, s.log).Warn("cache invalidation failed", zap.Strings("tags", tags), zap.Error(err))
	}
}

// isSelfOrDescendant reports whether candidate is node itself or lies in its subtree.
func isSelfOrDescendant(candidate, node *domain.Catalog) bool {
	if candidate.ID == node.ID {
		return true
	}
	if candidate.Path == nil || node.Path == nil {
		return false
	}
	return strings.HasPrefix(*candidate.Path, node.DescendantPrefix())
}

func checkPaths(node *domain.Catalog) error {
	for _, n := range node.Subtree() {
		if len(n.PathValue()) > domain.MaxPathLength {
			return domain.ErrPathTooLong
		}
	}
	return nil
}

func sameParentID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" || utf8.RuneCountInString(name) > domain.MaxNameLength {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func validateThumb(thumb *string) error {
	if thumb != nil && len(strings.TrimSpace(*thumb)) > domain.MaxThumbLength {
		return domain.ErrInvalidThumb
	}
	return nil
}

func parseID(raw string, invalid error) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id.Int64() <= 0 {
		return 0, invalid
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
