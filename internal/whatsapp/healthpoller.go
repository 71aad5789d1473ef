package whatsapp

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HealthPoller periodically checks the registry's providers in the
// background and logs transitions, adapted from the same polling
// pattern used for upstream LLM connectors: single ticker goroutine,
// cached last-known status, graceful Stop.
type HealthPoller struct {
	registry *Registry
	logger   zerolog.Logger
	interval time.Duration

	mu         sync.RWMutex
	lastStatus map[string]bool

	cancel context.CancelFunc
	done   chan struct{}
}

func NewHealthPoller(registry *Registry, logger zerolog.Logger, interval time.Duration) *HealthPoller {
	if interval < 15*time.Second {
		interval = 15 * time.Second
	}
	return &HealthPoller{
		registry:   registry,
		logger:     logger.With().Str("component", "whatsapp_health_poller").Logger(),
		interval:   interval,
		lastStatus: make(map[string]bool),
		done:       make(chan struct{}),
	}
}

func (hp *HealthPoller) Start(providerNames []string) {
	ctx, cancel := context.WithCancel(context.Background())
	hp.cancel = cancel
	go hp.pollLoop(ctx, providerNames)
}

func (hp *HealthPoller) Stop() {
	if hp.cancel != nil {
		hp.cancel()
	}
	<-hp.done
}

func (hp *HealthPoller) pollLoop(ctx context.Context, providerNames []string) {
	defer close(hp.done)
	hp.poll(ctx, providerNames)

	ticker := time.NewTicker(hp.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hp.poll(ctx, providerNames)
		}
	}
}

func (hp *HealthPoller) poll(ctx context.Context, providerNames []string) {
	pollCtx, cancel := context.WithTimeout(ctx, hp.interval/2)
	defer cancel()

	hp.mu.Lock()
	defer hp.mu.Unlock()

	for _, name := range providerNames {
		p, ok := hp.registry.Get(name)
		if !ok {
			continue
		}
		status := p.HealthCheck(pollCtx)
		wasHealthy, known := hp.lastStatus[name]
		if known && wasHealthy != status.Healthy {
			transition := "recovered"
			if !status.Healthy {
				transition = "degraded"
			}
			hp.logger.Warn().
				Str("provider", name).
				Str("transition", transition).
				Str("error", status.Error).
				Int64("latency_ms", status.LatencyMS).
				Msg("whatsapp provider status change")
		}
		hp.lastStatus[name] = status.Healthy
	}
}

func (hp *HealthPoller) IsHealthy(name string) bool {
	hp.mu.RLock()
	defer hp.mu.RUnlock()
	healthy, ok := hp.lastStatus[name]
	return ok && healthy
}
