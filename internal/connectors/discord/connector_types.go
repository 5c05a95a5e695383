package discord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	interactionTypeCommand   = 2
	interactionTypeComponent = 3

	responseTypeMessage        = 4
	responseTypeDeferredUpdate = 6
	responseTypeUpdateMessage  = 7

	messageFlagEphemeral = 1 << 6

	componentTypeActionRow = 1
	componentTypeButton    = 2
	buttonStyleSuccess     = 3
	buttonStyleDanger      = 4

	channelTypeCategory      = 4
	channelTypeNewsThread    = 10
	channelTypePublicThread  = 11
	channelTypePrivateThread = 12
)

func clipDiscordMessage(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= 2000 {
		return trimmed
	}
	return strings.TrimSpace(trimmed[:1997]) + "..."
}

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User             discordAuthor `json:"user"`
	SessionID        string        `json:"session_id"`
	ResumeGatewayURL string        `json:"resume_gateway_url"`
}

// gatewayResume is what a reconnect needs to replay missed events instead of
// starting a fresh session.
type gatewayResume struct {
	sessionID string
	url       string
	sequence  int64
}

func (r gatewayResume) ok() bool {
	return r.sessionID != "" && r.url != ""
}

type discordMessageCreate struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	GuildID     string              `json:"guild_id"`
	Content     string              `json:"content"`
	Author      discordAuthor       `json:"author"`
	Attachments []discordAttachment `json:"attachments"`
}

type discordInteractionCreate struct {
	ID        string                   `json:"id"`
	Type      int                      `json:"type"`
	Token     string                   `json:"token"`
	ChannelID string                   `json:"channel_id"`
	GuildID   string                   `json:"guild_id"`
	Data      discordInteractionData   `json:"data"`
	Member    discordInteractionMember `json:"member"`
	User      discordAuthor            `json:"user"`
	Message   *discordMessageRef       `json:"message"`
}

func (interaction discordInteractionCreate) userID() string {
	if strings.TrimSpace(interaction.Member.User.ID) != "" {
		return strings.TrimSpace(interaction.Member.User.ID)
	}
	return strings.TrimSpace(interaction.User.ID)
}

type discordInteractionData struct {
	Name          string                     `json:"name"`
	Options       []discordInteractionOption `json:"options"`
	CustomID      string                     `json:"custom_id"`
	ComponentType int                        `json:"component_type"`
}

type discordInteractionOption struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Value any    `json:"value"`
}

func (option discordInteractionOption) valueAsString() string {
	if option.Value == nil {
		return ""
	}
	switch value := option.Value.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		if value {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", value)
	}
}

type discordInteractionMember struct {
	User  discordAuthor `json:"user"`
	Roles []string      `json:"roles"`
}

type discordMessageRef struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

type discordAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type discordChannel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	GuildID  string `json:"guild_id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

func (channel discordChannel) isThread() bool {
	switch channel.Type {
	case channelTypeNewsThread, channelTypePublicThread, channelTypePrivateThread:
		return true
	default:
		return false
	}
}

type discordRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type discordGuildCreate struct {
	ID       string           `json:"id"`
	Channels []discordChannel `json:"channels"`
	Threads  []discordChannel `json:"threads"`
	Roles    []discordRole    `json:"roles"`
}

type discordGuildRoleEvent struct {
	GuildID string      `json:"guild_id"`
	Role    discordRole `json:"role"`
	RoleID  string      `json:"role_id"`
}

type discordButton struct {
	Type     int    `json:"type"`
	Style    int    `json:"style"`
	Label    string `json:"label"`
	CustomID string `json:"custom_id"`
}

type discordActionRow struct {
	Type       int             `json:"type"`
	Components []discordButton `json:"components"`
}
