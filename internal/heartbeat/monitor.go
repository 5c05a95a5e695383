package heartbeat

import (
	"context"
	"log/slog"
	"time"
)

type Transition struct {
	Component string `json:"component"`
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
}

type MonitorConfig struct {
	Interval     time.Duration
	StaleAfter   time.Duration
	Logger       *slog.Logger
	OnTransition func(context.Context, Transition)
}

// Monitor polls the registry and reports state changes of components it has
// already seen once.
type Monitor struct {
	registry *Registry
	cfg      MonitorConfig
	logger   *slog.Logger
}

func NewMonitor(registry *Registry, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{registry: registry, cfg: cfg, logger: logger.With("component", "heartbeat")}
}

func (m *Monitor) Start(ctx context.Context) error {
	if m.registry == nil {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	m.logger.Info("heartbeat monitor started", "interval", m.cfg.Interval.String(), "stale_after", m.cfg.StaleAfter.String())

	seen := map[string]string{}
	for {
		m.compare(ctx, m.registry.Snapshot(m.cfg.StaleAfter), seen)
		select {
		case <-ctx.Done():
			m.logger.Info("heartbeat monitor stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) compare(ctx context.Context, snapshot Snapshot, seen map[string]string) {
	for _, status := range snapshot.Components {
		before, known := seen[status.Name]
		seen[status.Name] = status.State
		if !known || before == status.State {
			continue
		}
		transition := Transition{
			Component: status.Name,
			FromState: before,
			ToState:   status.State,
			Message:   status.Message,
			Error:     status.Error,
		}
		if IsDegradedState(status.State) {
			m.logger.Warn("component degraded", "name", status.Name, "from", before, "to", status.State, "error", status.Error)
		} else {
			m.logger.Info("component state changed", "name", status.Name, "from", before, "to", status.State)
		}
		if m.cfg.OnTransition != nil {
			m.cfg.OnTransition(ctx, transition)
		}
	}
}
