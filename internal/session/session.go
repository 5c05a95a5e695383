// Package session tracks the confirm/escalate exchange that follows a posted
// fix. A session is keyed by the id of the reply that carries the two action
// buttons and ends in exactly one terminal state.
package session

import (
	"fmt"
	"sync/atomic"
	"time"
)

type State int32

const (
	StateOpen State = iota
	StateResolved
	StateEscalated
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateResolved:
		return "resolved"
	case StateEscalated:
		return "escalated"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

func (s State) Terminal() bool {
	return s != StateOpen
}

// Action is the custom id carried by a button on the fix reply.
type Action string

const (
	ActionResolved   Action = "issue_solved"
	ActionUnresolved Action = "issue_unresolved"
)

const (
	ClosingText       = "Im glad your issue is resolved! Have a nice day."
	EscalationAckText = "Issue not resolved, notifying admin..."
	NotRequesterText  = "Only the person who asked can respond to this fix."
)

func BroadcastText(roleID, userID string) string {
	return fmt.Sprintf("<@&%s>, an issue has been reported by <@%s>.", roleID, userID)
}

type Session struct {
	ID          string
	ChannelID   string
	GuildID     string
	RequesterID string
	Issue       string
	OpenedAt    time.Time
	Deadline    time.Time

	state atomic.Int32
	timer *time.Timer
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// transition moves the session out of Open. Only the first caller wins.
func (s *Session) transition(to State) bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(to))
}

// Outcome describes a terminal transition.
type Outcome struct {
	SessionID   string
	ChannelID   string
	GuildID     string
	RequesterID string
	ActorID     string
	Issue       string
	State       State
	At          time.Time
}
