package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/tale"
	"github.com/aretw0/tale/internal/config"
	"github.com/aretw0/tale/pkg/domain"
	"github.com/aretw0/tale/pkg/ports"
	"github.com/aretw0/tale/pkg/registry"
	"github.com/aretw0/tale/pkg/story"
)

// LoadStory returns the graph at path, or the built-in cave adventure when path is empty.
func LoadStory(path string) (*domain.Graph, error) {
	if path == "" {
		return story.Cave()
	}
	g, err := story.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load story %s: %w", path, err)
	}
	return g, nil
}

// NewEngine initializes a Tale engine with the settings of cfg.
func NewEngine(cfg config.Config, logger *slog.Logger, sinks ...ports.EventSink) (*tale.Engine, error) {
	g, err := LoadStory(cfg.Story)
	if err != nil {
		return nil, err
	}

	opts := []tale.Option{
		tale.WithLogger(logger),
		tale.WithCountdown(cfg.Countdown),
		tale.WithTickInterval(cfg.TickInterval),
		tale.WithTransitionDelay(cfg.TransitionDelay),
		tale.WithFailEvery(cfg.FailEvery),
		tale.WithEventSink(sinks...),
		tale.WithRegistryOptions(
			registry.WithLimit(cfg.MaxSessions),
			registry.WithRetention(cfg.SessionRetention),
		),
	}

	engine, err := tale.New(g, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
