package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Interaction identifies the platform callback a signal arrived on so the
// response can be attached to it.
type Interaction struct {
	ID    string
	Token string
}

// Effects are the platform side effects a session produces.
type Effects interface {
	// CloseResolved replaces the reply content with text and drops its buttons.
	CloseResolved(ctx context.Context, interaction Interaction, text string) error
	RespondPrivate(ctx context.Context, interaction Interaction, text string) error
	// Acknowledge answers the callback without changing anything visible.
	Acknowledge(ctx context.Context, interaction Interaction) error
	RoleExists(ctx context.Context, guildID, roleID string) (bool, error)
	Broadcast(ctx context.Context, channelID, text string, roleIDs, userIDs []string) error
	ClearActions(ctx context.Context, channelID, messageID string) error
}

type OpenInput struct {
	MessageID   string
	ChannelID   string
	GuildID     string
	RequesterID string
	Issue       string
}

type Signal struct {
	SessionID   string
	Action      Action
	ActorID     string
	Interaction Interaction
	// ReceivedAt is when the platform delivered the signal. Zero means now.
	ReceivedAt time.Time
}

type Options struct {
	Window        time.Duration
	RequesterOnly bool
	// AdminRole is read at escalation time so role changes apply to open
	// sessions.
	AdminRole func() string
	// OnOutcome is called once per session after its terminal effects ran.
	OnOutcome     func(Outcome)
	EffectTimeout time.Duration
}

type Manager struct {
	effects       Effects
	window        time.Duration
	requesterOnly bool
	adminRole     func() string
	onOutcome     func(Outcome)
	effectTimeout time.Duration
	logger        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(effects Effects, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	window := opts.Window
	if window <= 0 {
		window = 15 * time.Second
	}
	effectTimeout := opts.EffectTimeout
	if effectTimeout <= 0 {
		effectTimeout = 10 * time.Second
	}
	adminRole := opts.AdminRole
	if adminRole == nil {
		adminRole = func() string { return "" }
	}
	return &Manager{
		effects:       effects,
		window:        window,
		requesterOnly: opts.RequesterOnly,
		adminRole:     adminRole,
		onOutcome:     opts.OnOutcome,
		effectTimeout: effectTimeout,
		logger:        logger.With("component", "session"),
		sessions:      map[string]*Session{},
	}
}

// Open starts a session for a reply that has just been posted with both
// actions. The deadline timer starts immediately.
func (m *Manager) Open(input OpenInput) *Session {
	now := time.Now().UTC()
	session := &Session{
		ID:          input.MessageID,
		ChannelID:   input.ChannelID,
		GuildID:     input.GuildID,
		RequesterID: input.RequesterID,
		Issue:       input.Issue,
		OpenedAt:    now,
		Deadline:    now.Add(m.window),
	}

	m.mu.Lock()
	if previous, ok := m.sessions[session.ID]; ok && previous.timer != nil {
		previous.timer.Stop()
	}
	m.sessions[session.ID] = session
	session.timer = time.AfterFunc(m.window, func() {
		m.expire(session)
	})
	m.mu.Unlock()

	m.logger.Info("session opened",
		"session_id", session.ID,
		"channel_id", session.ChannelID,
		"requester_id", session.RequesterID,
		"deadline", session.Deadline.Format(time.RFC3339),
	)
	return session
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	return session, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Signal applies an explicit user action. Signals for unknown or finished
// sessions and unknown actions are acknowledged silently.
func (m *Manager) Signal(ctx context.Context, signal Signal) error {
	session, ok := m.Get(signal.SessionID)
	if !ok || session.State().Terminal() {
		return m.effects.Acknowledge(ctx, signal.Interaction)
	}
	receivedAt := signal.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	if receivedAt.After(session.Deadline) {
		m.logger.Info("signal after deadline", "session_id", session.ID, "action", signal.Action)
		m.expireWith(ctx, session)
		return m.effects.Acknowledge(ctx, signal.Interaction)
	}
	if m.requesterOnly && signal.ActorID != session.RequesterID {
		m.logger.Info("signal from non-requester ignored",
			"session_id", session.ID,
			"actor_id", signal.ActorID,
		)
		return m.effects.RespondPrivate(ctx, signal.Interaction, NotRequesterText)
	}

	switch signal.Action {
	case ActionResolved:
		if !m.finish(session, StateResolved) {
			return m.effects.Acknowledge(ctx, signal.Interaction)
		}
		err := m.effects.CloseResolved(ctx, signal.Interaction, ClosingText)
		m.report(session, StateResolved, signal.ActorID)
		return err
	case ActionUnresolved:
		if !m.finish(session, StateEscalated) {
			return m.effects.Acknowledge(ctx, signal.Interaction)
		}
		err := m.escalate(ctx, session, signal)
		m.report(session, StateEscalated, signal.ActorID)
		return err
	default:
		m.logger.Warn("unknown session action", "session_id", session.ID, "action", signal.Action)
		return m.effects.Acknowledge(ctx, signal.Interaction)
	}
}

// ExpireAll ends every open session, e.g. on shutdown.
func (m *Manager) ExpireAll(ctx context.Context) {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		open = append(open, session)
	}
	m.mu.Unlock()
	for _, session := range open {
		m.expireWith(ctx, session)
	}
}

func (m *Manager) escalate(ctx context.Context, session *Session, signal Signal) error {
	if err := m.effects.RespondPrivate(ctx, signal.Interaction, EscalationAckText); err != nil {
		m.logger.Error("escalation acknowledgement failed", "session_id", session.ID, "error", err)
	}

	roleID := m.adminRole()
	exists := false
	if roleID != "" {
		found, err := m.effects.RoleExists(ctx, session.GuildID, roleID)
		if err != nil {
			m.logger.Error("admin role lookup failed", "session_id", session.ID, "guild_id", session.GuildID, "error", err)
		}
		exists = found
	}
	if exists {
		text := BroadcastText(roleID, session.RequesterID)
		if err := m.effects.Broadcast(ctx, session.ChannelID, text, []string{roleID}, []string{session.RequesterID}); err != nil {
			m.logger.Error("escalation broadcast failed", "session_id", session.ID, "channel_id", session.ChannelID, "error", err)
		}
	} else {
		m.logger.Error("admin role not found, escalation not broadcast",
			"session_id", session.ID,
			"guild_id", session.GuildID,
			"admin_role", roleID,
		)
	}

	return m.effects.ClearActions(ctx, session.ChannelID, session.ID)
}

func (m *Manager) expire(session *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.effectTimeout)
	defer cancel()
	m.expireWith(ctx, session)
}

func (m *Manager) expireWith(ctx context.Context, session *Session) {
	if !m.finish(session, StateExpired) {
		return
	}
	if err := m.effects.ClearActions(ctx, session.ChannelID, session.ID); err != nil {
		m.logger.Error("clear expired actions failed", "session_id", session.ID, "channel_id", session.ChannelID, "error", err)
	}
	m.report(session, StateExpired, "")
}

// finish performs the terminal transition, stops the timer and forgets the
// session. It reports whether this caller won the transition.
func (m *Manager) finish(session *Session, to State) bool {
	if !session.transition(to) {
		return false
	}
	m.mu.Lock()
	if session.timer != nil {
		session.timer.Stop()
	}
	if current, ok := m.sessions[session.ID]; ok && current == session {
		delete(m.sessions, session.ID)
	}
	m.mu.Unlock()
	m.logger.Info("session closed", "session_id", session.ID, "state", to.String())
	return true
}

func (m *Manager) report(session *Session, state State, actorID string) {
	if m.onOutcome == nil {
		return
	}
	m.onOutcome(Outcome{
		SessionID:   session.ID,
		ChannelID:   session.ChannelID,
		GuildID:     session.GuildID,
		RequesterID: session.RequesterID,
		ActorID:     actorID,
		Issue:       session.Issue,
		State:       state,
		At:          time.Now().UTC(),
	})
}
