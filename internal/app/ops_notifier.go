package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwizi/fixdesk/internal/heartbeat"
)

// opsNotifier posts component health changes to an operator channel.
// Only transitions into or out of a degraded state are worth a message.
type opsNotifier struct {
	publisher publisher
	channelID string
	logger    *slog.Logger
}

func newOpsNotifier(target publisher, channelID string, logger *slog.Logger) *opsNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &opsNotifier{
		publisher: target,
		channelID: strings.TrimSpace(channelID),
		logger:    logger,
	}
}

func (n *opsNotifier) HandleTransition(ctx context.Context, transition heartbeat.Transition) {
	if n == nil || n.publisher == nil || n.channelID == "" {
		return
	}
	text := transitionMessage(transition)
	if text == "" {
		return
	}
	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := n.publisher.Publish(publishCtx, n.channelID, text); err != nil {
		n.logger.Error("ops notification failed", "component_name", transition.Component, "error", err)
	}
}

func transitionMessage(transition heartbeat.Transition) string {
	degradedNow := heartbeat.IsDegradedState(transition.ToState)
	degradedBefore := heartbeat.IsDegradedState(transition.FromState)
	switch {
	case degradedNow && !degradedBefore:
		text := fmt.Sprintf("fixdesk: `%s` is %s", transition.Component, transition.ToState)
		if detail := strings.TrimSpace(transition.Error); detail != "" {
			text += " (" + detail + ")"
		}
		return text
	case degradedBefore && !degradedNow && transition.ToState == heartbeat.StateHealthy:
		return fmt.Sprintf("fixdesk: `%s` recovered", transition.Component)
	default:
		return ""
	}
}
