package settings

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Source interface {
	Read() (Settings, error)
	WriteMainLanguage(value string) error
}

// Runtime is the process-wide view of the settings. Snapshot and MainLanguage
// return the latest committed value; a value read at the start of an event may
// be replaced before the event finishes.
type Runtime struct {
	source  Source
	logger  *slog.Logger
	current atomic.Pointer[Settings]
	writeMu sync.Mutex
}

func NewRuntime(source Source, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loaded, err := source.Read()
	if err != nil {
		return nil, err
	}
	runtime := &Runtime{source: source, logger: logger}
	runtime.current.Store(&loaded)
	return runtime, nil
}

func (r *Runtime) Snapshot() Settings {
	return *r.current.Load()
}

func (r *Runtime) MainLanguage() string {
	return r.current.Load().MainLanguage
}

// SetMainLanguage validates code, persists it and publishes it. Nothing is
// published if persisting fails.
func (r *Runtime) SetMainLanguage(code string) (string, error) {
	normalized, err := NormalizeLanguage(code)
	if err != nil {
		return "", err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.source.WriteMainLanguage(normalized); err != nil {
		return "", fmt.Errorf("persist main language: %w", err)
	}
	next := *r.current.Load()
	next.MainLanguage = normalized
	r.current.Store(&next)
	r.logger.Info("main language updated", "main_language", normalized)
	return normalized, nil
}

// Reload re-reads the source, e.g. after the settings file was edited by hand.
func (r *Runtime) Reload() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	loaded, err := r.source.Read()
	if err != nil {
		return err
	}
	r.current.Store(&loaded)
	r.logger.Info("settings reloaded",
		"main_language", loaded.MainLanguage,
		"monitored_category", loaded.MonitoredCategory,
	)
	return nil
}
