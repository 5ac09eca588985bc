package routing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rkbansal/postify/models"
	"github.com/rkbansal/postify/services/prompt"
	"github.com/rkbansal/postify/services/providers"
	"go.uber.org/zap"
)

// Generation parameters sent with every attempt
const (
	generationTemperature = 0.7
	generationMaxTokens   = 1500
)

// Config controls model selection
type Config struct {
	// DefaultModel is the last entry of every chain and the only one when
	// PreferFreeModels is off
	DefaultModel string

	PreferFreeModels bool

	// RetryDelay is multiplied by the attempt number before moving on after a transient failure
	RetryDelay time.Duration

	// Preferred overrides PreferredFreeModels when non-nil
	Preferred []string
}

// Attempt records one failed model call
type Attempt struct {
	Model     string
	Err       error
	Transient bool
}

// AllModelsFailedError is returned when every model in the chain failed
type AllModelsFailedError struct {
	Attempts []Attempt
	Last     error
}

func (e *AllModelsFailedError) Error() string {
	if e.Last == nil {
		return "all models failed"
	}
	return fmt.Sprintf("all models failed (%d attempted), last error: %v", len(e.Attempts), e.Last)
}

// Unwrap returns the last model's error
func (e *AllModelsFailedError) Unwrap() error {
	return e.Last
}

// AllTransient reports whether every attempted model failed with a transient
// error, meaning the provider itself was saturated rather than the output bad
func (e *AllModelsFailedError) AllTransient() bool {
	if len(e.Attempts) == 0 {
		return false
	}
	for _, a := range e.Attempts {
		if !a.Transient {
			return false
		}
	}
	return true
}

// Coordinator generates posts by walking a ranked chain of models until one
// returns a structurally valid response
type Coordinator struct {
	cfg        Config
	completer  providers.Completer
	freeModels *FreeModelCache
	health     *HealthTable
	sleeper    Sleeper
	logger     *zap.Logger
}

// NewCoordinator wires a coordinator. A nil sleeper sleeps on a real timer.
func NewCoordinator(cfg Config, completer providers.Completer, freeModels *FreeModelCache, health *HealthTable, sleeper Sleeper, logger *zap.Logger) *Coordinator {
	if cfg.Preferred == nil {
		cfg.Preferred = PreferredFreeModels
	}
	if sleeper == nil {
		sleeper = TimerSleeper
	}
	return &Coordinator{
		cfg:        cfg,
		completer:  completer,
		freeModels: freeModels,
		health:     health,
		sleeper:    sleeper,
		logger:     logger,
	}
}

// DefaultModel returns the configured fallback model
func (c *Coordinator) DefaultModel() string { return c.cfg.DefaultModel }

// PreferFreeModels reports whether free models are tried before the default
func (c *Coordinator) PreferFreeModels() bool { return c.cfg.PreferFreeModels }

// GetFreeModels returns the cached free models
func (c *Coordinator) GetFreeModels(ctx context.Context) []providers.ModelDescriptor {
	return c.freeModels.GetFreeModels(ctx)
}

// RecordOutcome updates the health of modelID
func (c *Coordinator) RecordOutcome(modelID string, success bool) {
	c.health.RecordOutcome(modelID, success)
}

// IsHealthy reports the health of modelID
func (c *Coordinator) IsHealthy(modelID string) bool {
	return c.health.IsHealthy(modelID)
}

// HealthSnapshot returns the current health records
func (c *Coordinator) HealthSnapshot() []ModelHealth {
	return c.health.Snapshot()
}

// BuildFallbackChain ranks the free models by preference and health and
// appends the default model
func (c *Coordinator) BuildFallbackChain(ctx context.Context) []string {
	free := c.freeModels.GetFreeModels(ctx)
	chain := orderChain(free, c.cfg.Preferred, c.cfg.DefaultModel, c.health.IsHealthy)

	c.logger.Debug("fallback chain built",
		zap.Int("length", len(chain)),
		zap.Strings("head", chain[:min(3, len(chain))]),
	)
	return chain
}

// chain returns the models to try for one request
func (c *Coordinator) chain(ctx context.Context) []string {
	if !c.cfg.PreferFreeModels {
		return []string{c.cfg.DefaultModel}
	}
	return c.BuildFallbackChain(ctx)
}

// GenerateWithFallback tries each model of the chain in turn. Transient
// failures (rate limits, overload) wait RetryDelay*(i+1) before the next
// model; other failures move on immediately.
func (c *Coordinator) GenerateWithFallback(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	chain := c.chain(ctx)
	messages := []providers.Message{
		{Role: providers.RoleSystem, Content: prompt.SystemPrompt()},
		{Role: providers.RoleUser, Content: prompt.BuildUserPrompt(req)},
	}

	attempts := make([]Attempt, 0, len(chain))
	var lastErr error

	for i, modelID := range chain {
		if err := ctx.Err(); err != nil {
			return nil, &AllModelsFailedError{Attempts: attempts, Last: err}
		}

		c.logger.Info("trying model",
			zap.String("model", modelID),
			zap.Int("attempt", i+1),
			zap.Int("chain_length", len(chain)),
		)

		content, err := c.attempt(ctx, modelID, messages, req.Platforms)
		if err == nil {
			c.health.RecordOutcome(modelID, true)
			c.logger.Info("generation succeeded", zap.String("model", modelID), zap.Int("attempt", i+1))
			return content, nil
		}

		lastErr = err
		c.health.RecordOutcome(modelID, false)
		transient := isTransient(err)
		attempts = append(attempts, Attempt{Model: modelID, Err: err, Transient: transient})

		c.logger.Warn("model failed",
			zap.String("model", modelID),
			zap.Int("attempt", i+1),
			zap.Bool("transient", transient),
			zap.Error(err),
		)

		if i == len(chain)-1 {
			break
		}

		if transient {
			delay := c.cfg.RetryDelay * time.Duration(i+1)
			if err := c.sleeper.Sleep(ctx, delay); err != nil {
				return nil, &AllModelsFailedError{Attempts: attempts, Last: err}
			}
		}
	}

	c.logger.Error("all models in fallback chain failed", zap.Int("attempts", len(attempts)), zap.Error(lastErr))
	return nil, &AllModelsFailedError{Attempts: attempts, Last: lastErr}
}

func (c *Coordinator) attempt(ctx context.Context, modelID string, messages []providers.Message, platforms []models.Platform) (*models.GeneratedContent, error) {
	resp, err := c.completer.Complete(ctx, &providers.ChatRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	content, err := prompt.ParseContent(resp.Content, platforms)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", modelID, err)
	}
	content.Model = modelID
	return content, nil
}

// isTransient reports rate-limit and overload failures. The gateway flags
// those as retryable; the message check covers errors it did not classify.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if providers.IsRetryable(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "overloaded")
}
