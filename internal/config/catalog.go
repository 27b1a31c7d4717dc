package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CatalogConfig tunes query defaults and cache lifetimes.
type CatalogConfig struct {
	Query QueryConfig    `mapstructure:"query"`
	Cache CacheTTLConfig `mapstructure:"cache"`
	Lock  LockConfig     `mapstructure:"lock"`
}

type QueryConfig struct {
	DefaultPageSize     int `mapstructure:"defaultPageSize"`
	MaxPageSize         int `mapstructure:"maxPageSize"`
	DefaultTreeMaxLevel int `mapstructure:"defaultTreeMaxLevel"`
}

type CacheTTLConfig struct {
	DetailTTL   time.Duration `mapstructure:"detailTTL"`
	TreeTTL     time.Duration `mapstructure:"treeTTL"`
	TypeListTTL time.Duration `mapstructure:"typeListTTL"`
}

type LockConfig struct {
	MoveTTL time.Duration `mapstructure:"moveTTL"`
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Query: QueryConfig{
			DefaultPageSize:     20,
			MaxPageSize:         250,
			DefaultTreeMaxLevel: 5,
		},
		Cache: CacheTTLConfig{
			DetailTTL:   1800 * time.Second,
			TreeTTL:     900 * time.Second,
			TypeListTTL: 1800 * time.Second,
		},
		Lock: LockConfig{
			MoveTTL: 30 * time.Second,
		},
	}
}

type CatalogConfigHolder struct {
	current atomic.Value // holds CatalogConfig
}

// NewStaticCatalogConfigHolder returns a holder that never reloads.
func NewStaticCatalogConfigHolder(cfg CatalogConfig) *CatalogConfigHolder {
	holder := &CatalogConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCatalogConfigHolder(cfg Config, log *zap.Logger) (*CatalogConfigHolder, error) {
	log = log.Named("catalog.config")
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	if cfg.CatalogConfigDir != "" {
		v.AddConfigPath(cfg.CatalogConfigDir)
	}
	v.AddConfigPath("/etc/catalog")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setCatalogDefaults(v, DefaultCatalogConfig())

	watch := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		watch = false
	}

	current, err := decodeCatalogConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateCatalogConfig(current); err != nil {
		return nil, err
	}

	holder := NewStaticCatalogConfigHolder(current)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeCatalogConfig(v)
		if err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateCatalogConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CatalogConfigHolder) Get() CatalogConfig {
	return h.current.Load().(CatalogConfig)
}

// decodeCatalogConfig reads the merged settings so defaults fill keys the file omits.
func decodeCatalogConfig(v *viper.Viper) (CatalogConfig, error) {
	var wrapper struct {
		Catalog CatalogConfig `mapstructure:"catalog"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return CatalogConfig{}, err
	}
	return wrapper.Catalog, nil
}

func setCatalogDefaults(v *viper.Viper, defaults CatalogConfig) {
	v.SetDefault("catalog.query.defaultPageSize", defaults.Query.DefaultPageSize)
	v.SetDefault("catalog.query.maxPageSize", defaults.Query.MaxPageSize)
	v.SetDefault("catalog.query.defaultTreeMaxLevel", defaults.Query.DefaultTreeMaxLevel)
	v.SetDefault("catalog.cache.detailTTL", defaults.Cache.DetailTTL)
	v.SetDefault("catalog.cache.treeTTL", defaults.Cache.TreeTTL)
	v.SetDefault("catalog.cache.typeListTTL", defaults.Cache.TypeListTTL)
	v.SetDefault("catalog.lock.moveTTL", defaults.Lock.MoveTTL)
}

func validateCatalogConfig(cfg CatalogConfig) error {
	if cfg.Query.MaxPageSize < 1 {
		return errors.New("catalog.query.maxPageSize must be positive")
	}
	if cfg.Query.DefaultPageSize < 1 || cfg.Query.DefaultPageSize > cfg.Query.MaxPageSize {
		return errors.New("catalog.query.defaultPageSize must be within 1..maxPageSize")
	}
	if cfg.Query.DefaultTreeMaxLevel < 1 || cfg.Query.DefaultTreeMaxLevel > 10 {
		return errors.New("catalog.query.defaultTreeMaxLevel must be within 1..10")
	}
	if cfg.Cache.DetailTTL < 0 || cfg.Cache.TreeTTL < 0 || cfg.Cache.TypeListTTL < 0 {
		return errors.New("catalog.cache ttl cannot be negative")
	}
	if cfg.Lock.MoveTTL <= 0 {
		return errors.New("catalog.lock.moveTTL must be positive")
	}
	return nil
}
