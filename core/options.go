package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// StaticRawConfigLoader serves a fixed raw config map.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// ResolveConfig loads config through provider and layers runtime overrides on
// top. Nil collaborators fall back to cfgx over an empty loader and the
// go-options resolver.
func ResolveConfig(
	ctx context.Context,
	provider ConfigProvider,
	resolver OptionsResolver,
	runtime Config,
) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, fmt.Errorf("core: load config: %w", err)
	}
	resolved, err := resolver.Resolve(defaults, loaded, runtime)
	if err != nil {
		return Config{}, fmt.Errorf("core: resolve config: %w", err)
	}
	return resolved, nil
}

// ConfigLayer renders every key of cfg as a nested raw map, suitable for
// seeding loader defaults.
func ConfigLayer(cfg Config) map[string]any {
	return configToLayerMap(cfg, true)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	http := section{}
	http.str("address", cfg.HTTP.Address, includeZero)
	http.num("max_body_bytes", cfg.HTTP.MaxBodyBytes, includeZero)
	http.into(layer, "http")

	database := section{}
	database.str("driver", cfg.Database.Driver, includeZero)
	database.str("dsn", cfg.Database.DSN, includeZero)
	database.flag("debug", cfg.Database.Debug, includeZero)
	database.into(layer, "database")

	queue := section{}
	queue.str("driver", cfg.Queue.Driver, includeZero)
	queue.str("redis_addr", cfg.Queue.RedisAddr, includeZero)
	queue.str("name", cfg.Queue.Name, includeZero)
	queue.num("workers", cfg.Queue.Workers, includeZero)
	queue.num("max_attempts", cfg.Queue.MaxAttempts, includeZero)
	queue.num("timeout_seconds", cfg.Queue.TimeoutSeconds, includeZero)
	queue.num("retry_initial_ms", cfg.Queue.RetryInitialMillis, includeZero)
	queue.num("retry_max_ms", cfg.Queue.RetryMaxMillis, includeZero)
	queue.into(layer, "queue")

	ingest := section{}
	ingest.str("status_policy", cfg.Ingest.StatusPolicy, includeZero)
	ingest.str("default_outbound_type", cfg.Ingest.DefaultOutboundType, includeZero)
	ingest.into(layer, "ingest")

	cache := section{}
	cache.flag("enabled", cfg.Cache.Enabled, includeZero)
	cache.num("ttl_seconds", cfg.Cache.TTLSeconds, includeZero)
	cache.into(layer, "cache")

	publish := section{}
	publish.str("driver", cfg.Publish.Driver, includeZero)
	if includeZero || len(cfg.Publish.Brokers) > 0 {
		publish["brokers"] = append([]string(nil), cfg.Publish.Brokers...)
	}
	publish.str("topic", cfg.Publish.Topic, includeZero)
	publish.into(layer, "publish")

	logging := section{}
	logging.str("level", cfg.Log.Level, includeZero)
	logging.str("format", cfg.Log.Format, includeZero)
	logging.into(layer, "log")

	return layer
}

type section map[string]any

func (s section) str(key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		s[key] = value
	}
}

func (s section) num(key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		s[key] = value
	}
}

func (s section) flag(key string, value bool, includeZero bool) {
	if includeZero || value {
		s[key] = value
	}
}

func (s section) into(layer map[string]any, key string) {
	if len(s) == 0 {
		return
	}
	layer[key] = map[string]any(s)
}
