// Package llm builds the language model used by the agent.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"charm.land/fantasy"
	fantasyanthropic "charm.land/fantasy/providers/anthropic"
	fantasyopenai "charm.land/fantasy/providers/openai"
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"

	"sqlchat/internal/apperr"
	"sqlchat/internal/config"
)

// Provider names a model vendor.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// DefaultTimeout bounds a single model round trip.
const DefaultTimeout = 60 * time.Second

// ParseProvider accepts a provider name, defaulting to groq when empty.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return ProviderGroq, nil
	case ProviderGroq, ProviderOpenAI, ProviderAnthropic:
		return p, nil
	default:
		return "", fmt.Errorf("unknown model provider %q (want groq, openai or anthropic)", s)
	}
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-haiku-4-5"
	default:
		return "llama-3.1-8b-instant"
	}
}

// EnvKey is the environment variable holding the API key for p.
func EnvKey(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "GROQ_API_KEY"
	}
}

// APIKeyFromEnv looks up the provider's key variable.
func APIKeyFromEnv(p Provider, lookup config.LookupFunc) string {
	if lookup == nil {
		return ""
	}
	v, _ := lookup(EnvKey(p))
	return strings.TrimSpace(v)
}

// Config selects a provider, credentials and model.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Provider == "" {
		c.Provider = ProviderGroq
	}
	if c.Model == "" {
		c.Model = DefaultModel(c.Provider)
	}
	if c.BaseURL == "" && c.Provider == ProviderGroq {
		c.BaseURL = GroqBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	return c
}

// Client is a configured language model plus the settings it was built from.
type Client struct {
	cfg   Config
	model fantasy.LanguageModel
}

// New builds the language model. An empty API key yields a MissingAPIKey error.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, apperr.New(apperr.MissingAPIKey, fmt.Sprintf("%s API key is required (set %s or run 'sqlchat key set')", cfg.Provider, EnvKey(cfg.Provider)))
	}

	var (
		provider fantasy.Provider
		err      error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		provider, err = fantasyanthropic.New(fantasyanthropic.WithAPIKey(cfg.APIKey))
	case ProviderGroq, ProviderOpenAI:
		opts := []fantasyopenai.Option{fantasyopenai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fantasyopenai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = fantasyopenai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model %s: %w", cfg.Model, err)
	}
	return &Client{cfg: cfg, model: model}, nil
}

// NewWithModel wraps an already constructed model, for tests and custom providers.
func NewWithModel(cfg Config, model fantasy.LanguageModel) *Client {
	return &Client{cfg: cfg.withDefaults(), model: model}
}

func (c *Client) Model() fantasy.LanguageModel { return c.model }
func (c *Client) Provider() Provider           { return c.cfg.Provider }
func (c *Client) ModelID() string              { return c.cfg.Model }
func (c *Client) Timeout() time.Duration       { return c.cfg.Timeout }

// VerifyKey checks the credentials by listing models. It does not spend tokens.
func VerifyKey(ctx context.Context, cfg Config) error {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return apperr.New(apperr.MissingAPIKey, "API key is required")
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var err error
	switch cfg.Provider {
	case ProviderAnthropic:
		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		client := anthropicsdk.NewClient(opts...)
		_, err = client.Models.List(ctx, anthropicsdk.ModelListParams{})
	default:
		oc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		_, err = openai.NewClientWithConfig(oc).ListModels(ctx)
	}
	if err != nil {
		return apperr.Wrap(apperr.MissingAPIKey, fmt.Sprintf("%s rejected the API key", cfg.Provider), fmt.Errorf("%s", config.Mask(err.Error())))
	}
	return nil
}
