package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/router"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/triage"
)

func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessageCreate) {
	if message.Author.Bot || message.GuildID == "" {
		return
	}
	if strings.TrimSpace(message.Content) == "" && len(message.Attachments) == 0 {
		return
	}
	c.submit(ctx, dispatch.JobKindMessage, message.ChannelID, func(ctx context.Context) error {
		return c.processMessage(ctx, message)
	})
}

func (c *Connector) processMessage(ctx context.Context, message discordMessageCreate) error {
	category, err := c.categoryName(ctx, message.ChannelID)
	if err != nil {
		return fmt.Errorf("resolve category for channel %s: %w", message.ChannelID, err)
	}
	attachments := make([]router.Attachment, 0, len(message.Attachments))
	for _, attachment := range message.Attachments {
		attachments = append(attachments, router.Attachment{
			URL:         attachment.URL,
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
		})
	}
	return c.handler.HandleMessage(ctx, triage.Message{
		ID:           message.ID,
		ChannelID:    message.ChannelID,
		GuildID:      message.GuildID,
		AuthorID:     message.Author.ID,
		AuthorIsBot:  message.Author.Bot,
		Text:         message.Content,
		CategoryName: category,
		Attachments:  attachments,
	})
}

func resolutionButtons() []discordActionRow {
	return []discordActionRow{{
		Type: componentTypeActionRow,
		Components: []discordButton{
			{Type: componentTypeButton, Style: buttonStyleSuccess, Label: "Issue Resolved", CustomID: string(session.ActionResolved)},
			{Type: componentTypeButton, Style: buttonStyleDanger, Label: "Issue Not Resolved, Notify Admin", CustomID: string(session.ActionUnresolved)},
		},
	}}
}

// Reply posts text as a reply to messageID and returns the new message id.
func (c *Connector) Reply(ctx context.Context, channelID, messageID, text string, withActions bool) (string, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", fmt.Errorf("discord channel id is required")
	}
	body := map[string]any{
		"content": clipDiscordMessage(text),
		"allowed_mentions": map[string]any{
			"parse":        []string{},
			"replied_user": true,
		},
	}
	if strings.TrimSpace(messageID) != "" {
		body["message_reference"] = map[string]any{
			"message_id":         messageID,
			"fail_if_not_exists": false,
		}
	}
	if withActions {
		body["components"] = resolutionButtons()
	}
	var created struct {
		ID string `json:"id"`
	}
	if _, err := c.doJSON(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, &created); err != nil {
		return "", err
	}
	if strings.TrimSpace(created.ID) == "" {
		return "", fmt.Errorf("discord send message returned empty id")
	}
	return created.ID, nil
}

// Broadcast posts text and lets it ping exactly the given roles and users.
func (c *Connector) Broadcast(ctx context.Context, channelID, text string, roleIDs, userIDs []string) error {
	body := map[string]any{
		"content": clipDiscordMessage(text),
		"allowed_mentions": map[string]any{
			"parse": []string{},
			"roles": nonNil(roleIDs),
			"users": nonNil(userIDs),
		},
	}
	_, err := c.doJSON(ctx, http.MethodPost, "/channels/"+strings.TrimSpace(channelID)+"/messages", body, nil)
	return err
}

// Publish sends a plain message without mentions.
func (c *Connector) Publish(ctx context.Context, channelID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.Broadcast(ctx, channelID, text, nil, nil)
}

// ClearActions removes the buttons from a message. A deleted message counts as
// cleared.
func (c *Connector) ClearActions(ctx context.Context, channelID, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s", strings.TrimSpace(channelID), strings.TrimSpace(messageID))
	_, err := c.doJSON(ctx, http.MethodPatch, path, map[string]any{"components": []any{}}, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
