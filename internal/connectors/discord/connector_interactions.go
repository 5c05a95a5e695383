package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/dwizi/fixdesk/internal/session"
)

func (c *Connector) respondInteraction(ctx context.Context, interaction session.Interaction, body map[string]any) error {
	if strings.TrimSpace(interaction.ID) == "" || strings.TrimSpace(interaction.Token) == "" {
		return fmt.Errorf("missing interaction id or token")
	}
	path := fmt.Sprintf("/interactions/%s/%s/callback", interaction.ID, interaction.Token)
	_, err := c.doJSON(ctx, http.MethodPost, path, body, nil)
	return err
}

// RespondPrivate answers an interaction with a message only the caller sees.
func (c *Connector) RespondPrivate(ctx context.Context, interaction session.Interaction, text string) error {
	return c.respondInteraction(ctx, interaction, map[string]any{
		"type": responseTypeMessage,
		"data": map[string]any{
			"content": clipDiscordMessage(text),
			"flags":   messageFlagEphemeral,
		},
	})
}

// Acknowledge tells Discord the click was handled without changing anything.
func (c *Connector) Acknowledge(ctx context.Context, interaction session.Interaction) error {
	return c.respondInteraction(ctx, interaction, map[string]any{
		"type": responseTypeDeferredUpdate,
	})
}

// CloseResolved edits the message the clicked button belongs to.
func (c *Connector) CloseResolved(ctx context.Context, interaction session.Interaction, text string) error {
	return c.respondInteraction(ctx, interaction, map[string]any{
		"type": responseTypeUpdateMessage,
		"data": map[string]any{
			"content":    clipDiscordMessage(text),
			"components": []any{},
		},
	})
}
