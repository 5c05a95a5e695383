// Package heartbeat tracks liveness of the long-running components (gateway
// connector, dispatcher, scheduler, settings watcher) plus a few gauges such as
// catalog size and open sessions.
package heartbeat

import (
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StateStarting = "starting"
	StateHealthy  = "healthy"
	StateDegraded = "degraded"
	StateDisabled = "disabled"
	StateStopped  = "stopped"
	StateStale    = "stale"
	StateIdle     = "idle"
	StateUnknown  = "unknown"
)

type Reporter interface {
	Starting(component, message string)
	Beat(component, message string)
	Degrade(component, message string, err error)
	Disabled(component, message string)
	Stopped(component, message string)
}

type ComponentStatus struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	BaseState      string `json:"base_state"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	LastBeatAtUnix int64  `json:"last_beat_at_unix,omitempty"`
	UpdatedAtUnix  int64  `json:"updated_at_unix"`
	Stale          bool   `json:"stale,omitempty"`
}

type Snapshot struct {
	GeneratedAtUnix int64             `json:"generated_at_unix"`
	Overall         string            `json:"overall"`
	Components      []ComponentStatus `json:"components"`
	Gauges          map[string]int64  `json:"gauges,omitempty"`
}

type component struct {
	state      string
	message    string
	lastError  string
	lastBeatAt time.Time
	updatedAt  time.Time
}

type Registry struct {
	mu         sync.RWMutex
	components map[string]component
	gauges     map[string]func() int64
}

func NewRegistry() *Registry {
	return &Registry{
		components: map[string]component{},
		gauges:     map[string]func() int64{},
	}
}

// Gauge registers a value read on every snapshot, e.g. the catalog size.
func (r *Registry) Gauge(name string, read func() int64) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || read == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = read
}

func (r *Registry) Starting(name, message string) {
	r.update(name, StateStarting, message, nil)
}

func (r *Registry) Beat(name, message string) {
	r.update(name, StateHealthy, message, nil)
}

func (r *Registry) Degrade(name, message string, err error) {
	if err == nil {
		err = errUnspecified
	}
	r.update(name, StateDegraded, message, err)
}

func (r *Registry) Disabled(name, message string) {
	r.update(name, StateDisabled, message, nil)
}

func (r *Registry) Stopped(name, message string) {
	r.update(name, StateStopped, message, nil)
}

func (r *Registry) update(name, state, message string, err error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return
	}
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.components[name]
	entry.state = state
	entry.message = strings.TrimSpace(message)
	entry.lastError = ""
	if err != nil {
		entry.lastError = strings.TrimSpace(err.Error())
	}
	entry.updatedAt = now
	if state == StateHealthy || entry.lastBeatAt.IsZero() {
		entry.lastBeatAt = now
	}
	r.components[name] = entry
}

// Snapshot reports every component. Healthy or starting components that have
// not beaten within staleAfter are reported stale.
func (r *Registry) Snapshot(staleAfter time.Duration) Snapshot {
	now := time.Now().UTC()
	r.mu.RLock()
	statuses := make([]ComponentStatus, 0, len(r.components))
	for name, entry := range r.components {
		status := ComponentStatus{
			Name:           name,
			State:          entry.state,
			BaseState:      entry.state,
			Message:        entry.message,
			Error:          entry.lastError,
			LastBeatAtUnix: entry.lastBeatAt.Unix(),
			UpdatedAtUnix:  entry.updatedAt.Unix(),
		}
		live := entry.state == StateHealthy || entry.state == StateStarting
		if staleAfter > 0 && live && now.Sub(entry.lastBeatAt) > staleAfter {
			status.State = StateStale
			status.Stale = true
		}
		statuses = append(statuses, status)
	}
	readers := make(map[string]func() int64, len(r.gauges))
	for name, read := range r.gauges {
		readers[name] = read
	}
	r.mu.RUnlock()

	sort.Slice(statuses, func(left, right int) bool {
		return statuses[left].Name < statuses[right].Name
	})
	var gauges map[string]int64
	if len(readers) > 0 {
		gauges = make(map[string]int64, len(readers))
		for name, read := range readers {
			gauges[name] = read()
		}
	}
	return Snapshot{
		GeneratedAtUnix: now.Unix(),
		Overall:         overall(statuses),
		Components:      statuses,
		Gauges:          gauges,
	}
}

func IsDegradedState(state string) bool {
	return state == StateDegraded || state == StateStale
}

func overall(statuses []ComponentStatus) string {
	if len(statuses) == 0 {
		return StateUnknown
	}
	starting, active := false, false
	for _, status := range statuses {
		switch status.State {
		case StateDegraded, StateStale:
			return StateDegraded
		case StateStarting:
			starting = true
		case StateDisabled, StateStopped:
		default:
			active = true
		}
	}
	if starting {
		return StateStarting
	}
	if active {
		return StateHealthy
	}
	return StateIdle
}

type unspecifiedError struct{}

func (unspecifiedError) Error() string { return "unspecified failure" }

var errUnspecified error = unspecifiedError{}
