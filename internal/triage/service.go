// Package triage wires the support pipeline together: routing of inbound
// messages, text extraction, language normalization, catalog matching and the
// follow-up session, plus the admin commands that maintain the catalog.
package triage

import (
	"context"
	"log/slog"
	"time"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/memorylog"
	"github.com/dwizi/fixdesk/internal/normalize"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/settings"
)

// Messenger posts replies on the chat platform.
type Messenger interface {
	// Reply answers messageID in channelID and returns the id of the posted
	// reply. withActions attaches the resolved/not resolved buttons.
	Reply(ctx context.Context, channelID, messageID, text string, withActions bool) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, imageURL, languages string) (string, error)
}

type Catalog interface {
	Match(ctx context.Context, text string) (catalog.IssueRecord, bool)
	Append(ctx context.Context, record catalog.IssueRecord) error
}

type SettingsStore interface {
	Snapshot() settings.Settings
	MainLanguage() string
	SetMainLanguage(code string) (string, error)
}

type Transcript interface {
	Append(entry memorylog.Entry) error
}

type Config struct {
	Connector string
	// MaxParallelExtractions bounds concurrent text extractions per message.
	MaxParallelExtractions int
}

type Service struct {
	catalog    Catalog
	settings   SettingsStore
	normalizer *normalize.Normalizer
	extractor  Extractor
	sessions   *session.Manager
	messenger  Messenger
	transcript Transcript
	cfg        Config
	logger     *slog.Logger
}

type Dependencies struct {
	Catalog    Catalog
	Settings   SettingsStore
	Normalizer *normalize.Normalizer
	Extractor  Extractor
	Sessions   *session.Manager
	Messenger  Messenger
	Transcript Transcript
}

func New(deps Dependencies, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Connector == "" {
		cfg.Connector = "discord"
	}
	if cfg.MaxParallelExtractions < 1 {
		cfg.MaxParallelExtractions = 4
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(nil, normalize.PolicyFallback, logger)
	}
	return &Service{
		catalog:    deps.Catalog,
		settings:   deps.Settings,
		normalizer: normalizer,
		extractor:  deps.Extractor,
		sessions:   deps.Sessions,
		messenger:  deps.Messenger,
		transcript: deps.Transcript,
		cfg:        cfg,
		logger:     logger.With("component", "triage"),
	}
}

// SetMessenger attaches the platform once it exists; the connector and the
// service reference each other.
func (s *Service) SetMessenger(messenger Messenger) {
	s.messenger = messenger
}

// RecordOutcome writes a finished session to the transcript. It is meant to be
// passed as session.Options.OnOutcome.
func (s *Service) RecordOutcome(outcome session.Outcome) {
	kind := memorylog.OutcomeExpired
	switch outcome.State {
	case session.StateResolved:
		kind = memorylog.OutcomeResolved
	case session.StateEscalated:
		kind = memorylog.OutcomeEscalated
	}
	actor := outcome.ActorID
	if actor == "" {
		actor = "system"
	}
	s.record(memorylog.Entry{
		GuildID:   outcome.GuildID,
		ChannelID: outcome.ChannelID,
		Outcome:   kind,
		ActorID:   actor,
		Text:      "session " + outcome.SessionID + " for issue: " + outcome.Issue,
		Timestamp: outcome.At,
	})
}

func (s *Service) record(entry memorylog.Entry) {
	if s.transcript == nil {
		return
	}
	if entry.Connector == "" {
		entry.Connector = s.cfg.Connector
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.transcript.Append(entry); err != nil {
		s.logger.Error("transcript append failed", "channel_id", entry.ChannelID, "error", err)
	}
}
