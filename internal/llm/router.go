package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/course-service/internal/config"
)

// ErrNoProviders is returned when no provider in llm.provider_order has credentials.
var ErrNoProviders = errors.New("no LLM providers configured")

// Router tries providers in configured order, and is itself a Client so the
// generator never knows how many providers sit behind it.
//
// Fallback only happens before the first delta. A provider that fails on
// connect (bad key, server error) has produced nothing, and the next
// provider can start from scratch. A provider that fails halfway through a
// course has already streamed text to the user and into the live document;
// restarting on another model would append a second, different beginning to
// it. In that case the error is returned and the cycle fails as a whole.
//
// Every attempt, including fallbacks, waits on one shared limiter, so
// llm.rate_per_minute caps total API calls rather than calls per provider.
type Router struct {
	clients []Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRouter creates a router over an ordered list of clients.
// ratePerMinute <= 0 disables limiting.
func NewRouter(clients []Client, ratePerMinute int, logger *zap.Logger) *Router {
	limit := rate.Inf
	if ratePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(ratePerMinute))
	}
	return &Router{
		clients: clients,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// NewClientsFromConfig builds clients in llm.provider_order, skipping
// providers without an API key.
func NewClientsFromConfig(cfg config.LLMConfig, logger *zap.Logger) []Client {
	var clients []Client
	for _, name := range cfg.ProviderOrder {
		switch strings.ToLower(name) {
		case "anthropic":
			if cfg.Anthropic.APIKey == "" {
				logger.Warn("anthropic listed in provider_order but no API key set")
				continue
			}
			clients = append(clients, NewAnthropicClient(cfg.Anthropic, cfg.MaxTurns))
		case "openai":
			if cfg.OpenAI.APIKey == "" {
				logger.Warn("openai listed in provider_order but no API key set")
				continue
			}
			clients = append(clients, NewOpenAIClient(cfg.OpenAI, cfg.MaxTurns))
		default:
			logger.Warn("unknown LLM provider in provider_order", zap.String("provider", name))
		}
	}
	return clients
}

func (r *Router) ProviderName() string {
	if len(r.clients) == 0 {
		return "none"
	}
	return r.clients[0].ProviderName()
}

func (r *Router) ModelName() string {
	if len(r.clients) == 0 {
		return ""
	}
	return r.clients[0].ModelName()
}

// Stream forwards to the first provider that succeeds.
func (r *Router) Stream(ctx context.Context, req Request, fn DeltaFunc) (*Usage, error) {
	if len(r.clients) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for i, client := range r.clients {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		started := false
		usage, err := client.Stream(ctx, req, func(d Delta) error {
			started = true
			return fn(d)
		})
		if err == nil {
			return usage, nil
		}
		if started || ctx.Err() != nil {
			return usage, err
		}

		lastErr = err
		if i < len(r.clients)-1 {
			r.logger.Warn("LLM provider failed before output, trying next",
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	return nil, fmt.Errorf("all LLM providers failed: %w", lastErr)
}
