package app

import (
	"context"

	"github.com/goliatone/go-inbox/adapters/viperconfig"
	"github.com/goliatone/go-inbox/core"
)

// LoadConfig layers defaults, the config file (or ./config.yaml when path is
// empty), INBOX_ environment overrides and runtime values, in that order.
func LoadConfig(ctx context.Context, path string, runtime core.Config, opts ...viperconfig.Option) (core.Config, error) {
	loaderOpts := append([]viperconfig.Option{viperconfig.WithFile(path)}, opts...)
	provider := core.NewCfgxConfigProvider(viperconfig.New(loaderOpts...))
	return core.ResolveConfig(ctx, provider, core.GoOptionsResolver{}, runtime)
}
