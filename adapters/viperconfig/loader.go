// Package viperconfig loads raw inbox configuration with viper: defaults, an
// optional yaml file, then INBOX_ prefixed environment overrides.
package viperconfig

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/goliatone/go-inbox/core"
)

const EnvPrefix = "INBOX"

// Loader implements core.RawConfigLoader.
type Loader struct {
	path     string
	defaults map[string]any
	lookup   func(string) (string, bool)
}

type Option func(*Loader)

// WithFile reads path when it exists. An empty path searches ./config.yaml
// and ./config/config.yaml.
func WithFile(path string) Option {
	return func(l *Loader) {
		l.path = strings.TrimSpace(path)
	}
}

func WithDefaults(defaults map[string]any) Option {
	return func(l *Loader) {
		l.defaults = defaults
	}
}

// WithEnvLookup replaces os.LookupEnv, mostly for tests.
func WithEnvLookup(lookup func(string) (string, bool)) Option {
	return func(l *Loader) {
		if lookup != nil {
			l.lookup = lookup
		}
	}
}

func New(opts ...Option) *Loader {
	l := &Loader{
		defaults: core.ConfigLayer(core.DefaultConfig()),
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *Loader) LoadRaw(context.Context) (map[string]any, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, "", l.defaults)

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("viperconfig: read %s: %w", l.path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("viperconfig: read config: %w", err)
			}
		}
	}

	for _, key := range v.AllKeys() {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if value, ok := l.lookup(env); ok {
			v.Set(key, envValue(v.Get(key), value))
		}
	}
	return v.AllSettings(), nil
}

// envValue converts an env string to the type of the current value. Lists
// are comma separated.
func envValue(current any, value string) any {
	value = strings.TrimSpace(value)
	switch current.(type) {
	case int:
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	case bool:
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	case []string, []any:
		out := []string{}
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return value
}

func setDefaults(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			setDefaults(v, full, nested)
			continue
		}
		v.SetDefault(full, value)
	}
}

var _ core.RawConfigLoader = (*Loader)(nil)
