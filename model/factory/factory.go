// Package factory builds model.Model instances from declarative entries so
// configuration files can name providers without importing their SDKs.
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/meetmesh/core"
	"github.com/hupe1980/meetmesh/model"
	anthropicmodel "github.com/hupe1980/meetmesh/model/anthropic"
	"github.com/hupe1980/meetmesh/model/compat"
	"github.com/hupe1980/meetmesh/model/gemini"
	"github.com/hupe1980/meetmesh/model/openai"
)

// Supported provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCompat    = "compat"
	ProviderMock      = "mock"
)

// Spec describes one named model entry.
type Spec struct {
	Name        string  `mapstructure:"name" toml:"name"`
	Provider    string  `mapstructure:"provider" toml:"provider"`
	Model       string  `mapstructure:"model" toml:"model"`
	APIKey      string  `mapstructure:"api_key" toml:"api_key"`
	BaseURL     string  `mapstructure:"base_url" toml:"base_url"`
	Temperature float64 `mapstructure:"temperature" toml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" toml:"max_tokens"`

	// Reasoning enables thinking output where the provider supports it.
	// ThinkingBudget sizes anthropic's extended thinking (default 1024).
	Reasoning      bool  `mapstructure:"reasoning" toml:"reasoning"`
	ThinkingBudget int64 `mapstructure:"thinking_budget" toml:"thinking_budget"`
	NoSystemRole   bool  `mapstructure:"no_system_role" toml:"no_system_role"`
}

// New creates the model described by spec.
func New(ctx context.Context, spec Spec) (model.Model, error) {
	switch strings.ToLower(spec.Provider) {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			setIf(&o.Model, spec.Model)
			o.APIKey = spec.APIKey
			o.BaseURL = spec.BaseURL
			if spec.Temperature > 0 {
				o.Temperature = spec.Temperature
			}
			if spec.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(spec.MaxTokens)
			}
		}), nil
	case ProviderAnthropic:
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if spec.Model != "" {
				o.Model = anthropic.Model(spec.Model)
			}
			o.APIKey = spec.APIKey
			o.BaseURL = spec.BaseURL
			if spec.Temperature > 0 {
				o.Temperature = spec.Temperature
			}
			if spec.MaxTokens > 0 {
				o.MaxTokens = int64(spec.MaxTokens)
			}
			if spec.Reasoning {
				o.ThinkingBudget = spec.ThinkingBudget
				if o.ThinkingBudget <= 0 {
					o.ThinkingBudget = 1024
				}
			}
		}), nil
	case ProviderGemini:
		m, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			setIf(&o.Model, spec.Model)
			o.APIKey = spec.APIKey
			o.BaseURL = spec.BaseURL
			if spec.Temperature > 0 {
				o.Temperature = float32(spec.Temperature)
			}
			if spec.MaxTokens > 0 {
				o.MaxOutputTokens = int32(spec.MaxTokens)
			}
			o.IncludeThoughts = spec.Reasoning
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case ProviderCompat:
		if spec.BaseURL == "" {
			return nil, fmt.Errorf("%w: model %q: compat provider requires base_url", core.ErrConfiguration, spec.Name)
		}
		return compat.NewModel(func(o *compat.Options) {
			o.Model = spec.Model
			o.APIKey = spec.APIKey
			o.BaseURL = spec.BaseURL
			if spec.Temperature > 0 {
				o.Temperature = float32(spec.Temperature)
			}
			if spec.MaxTokens > 0 {
				o.MaxTokens = spec.MaxTokens
			}
			o.NoSystemRole = spec.NoSystemRole
		}), nil
	case ProviderMock:
		name := spec.Model
		if name == "" {
			name = spec.Name
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("%w: model %q: unsupported provider %q", core.ErrConfiguration, spec.Name, spec.Provider)
	}
}

// Build creates every entry and registers it under its name. When
// defaultName is empty the first entry becomes the default.
func Build(ctx context.Context, specs []Spec, defaultName string) (*model.Registry, error) {
	reg := model.NewRegistry()
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: model entry without name", core.ErrConfiguration)
		}
		m, err := New(ctx, spec)
		if err != nil {
			return nil, err
		}
		reg.Register(spec.Name, m)
	}
	if defaultName != "" {
		if _, err := reg.Resolve(defaultName); err != nil {
			return nil, err
		}
		reg.SetDefault(defaultName)
	}
	return reg, nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
