package discord

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/fixdesk/internal/dispatch"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/triage"
)

func (c *Connector) syncCommands(ctx context.Context) error {
	applicationID, err := c.resolveApplicationID(ctx)
	if err != nil {
		return err
	}
	commandsPayload := buildDiscordCommandPayload(triage.SlashCommands())
	if len(commandsPayload) == 0 {
		return nil
	}
	if len(c.commandGuildIDs) == 0 {
		_, err := c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/applications/%s/commands", applicationID), commandsPayload, nil)
		return err
	}
	for _, guildID := range c.commandGuildIDs {
		path := fmt.Sprintf("/applications/%s/guilds/%s/commands", applicationID, guildID)
		if _, err := c.doJSON(ctx, http.MethodPut, path, commandsPayload, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) resolveApplicationID(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.applicationID) != "" {
		return c.applicationID, nil
	}
	var payload struct {
		ID string `json:"id"`
	}
	if _, err := c.doJSON(ctx, http.MethodGet, "/oauth2/applications/@me", nil, &payload); err != nil {
		return "", fmt.Errorf("discord application lookup: %w", err)
	}
	applicationID := strings.TrimSpace(payload.ID)
	if applicationID == "" {
		return "", fmt.Errorf("discord application lookup returned empty id")
	}
	c.applicationID = applicationID
	return applicationID, nil
}

func buildDiscordCommandPayload(commands []triage.SlashCommand) []map[string]any {
	payload := make([]map[string]any, 0, len(commands))
	for _, command := range commands {
		name := strings.TrimSpace(command.Name)
		if name == "" {
			continue
		}
		entry := map[string]any{
			"name":        name,
			"description": discordCommandDescription(command.Description),
			"type":        1,
		}
		if len(command.Options) > 0 {
			options := make([]map[string]any, 0, len(command.Options))
			for _, option := range command.Options {
				options = append(options, map[string]any{
					"type":        3,
					"name":        option.Name,
					"description": discordCommandDescription(option.Description),
					"required":    option.Required,
				})
			}
			entry["options"] = options
		}
		payload = append(payload, entry)
	}
	return payload
}

func discordCommandDescription(description string) string {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return "fixdesk command"
	}
	if len(trimmed) > 100 {
		return strings.TrimSpace(trimmed[:100])
	}
	return trimmed
}

func (c *Connector) handleInteractionCreate(ctx context.Context, interaction discordInteractionCreate) {
	receivedAt := time.Now()
	switch interaction.Type {
	case interactionTypeCommand:
		c.submit(ctx, dispatch.JobKindCommand, interaction.ChannelID, func(ctx context.Context) error {
			return c.processCommand(ctx, interaction)
		})
	case interactionTypeComponent:
		c.submit(ctx, dispatch.JobKindInteraction, interaction.ChannelID, func(ctx context.Context) error {
			return c.processComponent(ctx, interaction, receivedAt)
		})
	}
}

func (c *Connector) processCommand(ctx context.Context, interaction discordInteractionCreate) error {
	ref := session.Interaction{ID: interaction.ID, Token: interaction.Token}
	options := make(map[string]string, len(interaction.Data.Options))
	for _, option := range interaction.Data.Options {
		options[option.Name] = strings.TrimSpace(option.valueAsString())
	}
	result := c.handler.HandleCommand(ctx, triage.Command{
		Name:          interaction.Data.Name,
		Options:       options,
		GuildID:       interaction.GuildID,
		ChannelID:     interaction.ChannelID,
		UserID:        interaction.userID(),
		MemberRoleIDs: interaction.Member.Roles,
	})
	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "Command received."
	}
	return c.RespondPrivate(ctx, ref, text)
}

func (c *Connector) processComponent(ctx context.Context, interaction discordInteractionCreate, receivedAt time.Time) error {
	ref := session.Interaction{ID: interaction.ID, Token: interaction.Token}
	if interaction.Message == nil || strings.TrimSpace(interaction.Message.ID) == "" {
		return c.Acknowledge(ctx, ref)
	}
	return c.handler.HandleAction(ctx, session.Signal{
		SessionID:   interaction.Message.ID,
		Action:      session.Action(interaction.Data.CustomID),
		ActorID:     interaction.userID(),
		Interaction: ref,
		ReceivedAt:  receivedAt,
	})
}
