package discord

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/heartbeat"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/triage"
)

const (
	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentMessageContents = 1 << 15

	componentName = "connector:discord"
	userAgent     = "fixdesk/0.1"
)

// Handler receives decoded platform events.
type Handler interface {
	HandleMessage(ctx context.Context, message triage.Message) error
	HandleCommand(ctx context.Context, command triage.Command) triage.CommandResult
	HandleAction(ctx context.Context, signal session.Signal) error
}

// Dispatcher takes event handling off the gateway read loop.
type Dispatcher interface {
	Enqueue(job dispatch.Job) (dispatch.Job, error)
}

var (
	_ triage.Messenger = (*Connector)(nil)
	_ session.Effects  = (*Connector)(nil)
)

type Connector struct {
	token           string
	apiBase         string
	gatewayURL      string
	commandSync     bool
	commandGuildIDs []string
	applicationID   string
	handler         Handler
	dispatcher      Dispatcher
	httpClient      *http.Client
	logger          *slog.Logger
	botUserID       string
	reporter        heartbeat.Reporter
	guilds          *guildCache

	resumeMu sync.Mutex
	resume   gatewayResume
}

type Option func(*Connector)

func WithCommandSync(enabled bool) Option {
	return func(connector *Connector) {
		connector.commandSync = enabled
	}
}

func WithCommandGuildIDs(guildIDs []string) Option {
	return func(connector *Connector) {
		clean := make([]string, 0, len(guildIDs))
		seen := map[string]struct{}{}
		for _, guildID := range guildIDs {
			value := strings.TrimSpace(guildID)
			if value == "" {
				continue
			}
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			clean = append(clean, value)
		}
		connector.commandGuildIDs = clean
	}
}

func WithApplicationID(applicationID string) Option {
	return func(connector *Connector) {
		connector.applicationID = strings.TrimSpace(applicationID)
	}
}

func WithDispatcher(dispatcher Dispatcher) Option {
	return func(connector *Connector) {
		connector.dispatcher = dispatcher
	}
}

func WithHTTPTimeout(timeout time.Duration) Option {
	return func(connector *Connector) {
		if timeout > 0 {
			connector.httpClient.Timeout = timeout
		}
	}
}

func New(token, apiBase, gatewayURL string, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:       strings.TrimSpace(token),
		apiBase:     strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL:  strings.TrimSpace(gatewayURL),
		commandSync: true,
		httpClient:  &http.Client{Timeout: 12 * time.Second},
		logger:      logger.With("component", "discord"),
		guilds:      newGuildCache(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "discord"
}

// SetHandler attaches the event handler. It must be called before Start.
func (c *Connector) SetHandler(handler Handler) {
	c.handler = handler
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}

// submit runs fn on the dispatcher, or inline when none is configured.
func (c *Connector) submit(ctx context.Context, kind dispatch.JobKind, channelID string, fn func(ctx context.Context) error) {
	if c.dispatcher == nil {
		if err := fn(ctx); err != nil {
			c.logger.Error("discord event handling failed", "kind", kind, "channel_id", channelID, "error", err)
		}
		return
	}
	if _, err := c.dispatcher.Enqueue(dispatch.Job{Kind: kind, ChannelID: channelID, Run: fn}); err != nil {
		c.logger.Error("discord event dropped", "kind", kind, "channel_id", channelID, "error", err)
	}
}
