package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/triage"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recordedRequest
	channels map[string]discordChannel
	roles    []discordRole
	patch404 bool
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body := map[string]any{}
		data, _ := io.ReadAll(req.Body)
		if len(data) > 0 && data[0] == '{' {
			_ = json.Unmarshal(data, &body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Auth: req.Header.Get("Authorization"), Body: body})
		f.mu.Unlock()

		switch {
		case req.Method == http.MethodGet && strings.HasPrefix(req.URL.Path, "/channels/"):
			channel, ok := f.channels[strings.TrimPrefix(req.URL.Path, "/channels/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(channel)
		case req.Method == http.MethodGet && strings.HasSuffix(req.URL.Path, "/roles"):
			_ = json.NewEncoder(w).Encode(f.roles)
		case req.Method == http.MethodGet && req.URL.Path == "/oauth2/applications/@me":
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "app-1"})
		case req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/messages"):
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "reply-1"})
		case req.Method == http.MethodPatch:
			if f.patch404 {
				w.WriteHeader(http.StatusNotFound)
				_, _ = io.WriteString(w, `{"message":"Unknown Message"}`)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "reply-1"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

type fakeHandler struct {
	mu       sync.Mutex
	messages []triage.Message
	commands []triage.Command
	signals  []session.Signal
	result   triage.CommandResult
}

func (f *fakeHandler) HandleMessage(ctx context.Context, message triage.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return nil
}

func (f *fakeHandler) HandleCommand(ctx context.Context, command triage.Command) triage.CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	return f.result
}

func (f *fakeHandler) HandleAction(ctx context.Context, signal session.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal)
	return nil
}

func newTestConnector(t *testing.T, api *fakeAPI) (*Connector, *fakeHandler) {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	connector := New("bot-token", server.URL, "wss://discord.test/ws", logger)
	handler := &fakeHandler{}
	connector.SetHandler(handler)
	return connector, handler
}

func TestMessageCreateResolvesCategoryFromCache(t *testing.T) {
	api := &fakeAPI{}
	connector, handler := newTestConnector(t, api)
	connector.guilds.loadGuild(discordGuildCreate{
		ID: "g1",
		Channels: []discordChannel{
			{ID: "cat-1", Type: channelTypeCategory, Name: "support"},
			{ID: "chan-1", Type: 0, Name: "help", ParentID: "cat-1"},
		},
	})

	connector.handleMessageCreate(context.Background(), discordMessageCreate{
		ID:        "m1",
		ChannelID: "chan-1",
		GuildID:   "g1",
		Content:   "login fails",
		Author:    discordAuthor{ID: "u1"},
		Attachments: []discordAttachment{
			{URL: "https://cdn/a.png", Filename: "a.png", ContentType: "image/png"},
		},
	})

	if len(handler.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(handler.messages))
	}
	got := handler.messages[0]
	if got.CategoryName != "support" || got.AuthorID != "u1" || got.Text != "login fails" {
		t.Fatalf("unexpected message %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].ContentType != "image/png" {
		t.Fatalf("unexpected attachments %+v", got.Attachments)
	}
	if len(api.recorded()) != 0 {
		t.Fatalf("cache hit should not call REST, got %+v", api.recorded())
	}
}

func TestMessageCreateThreadFallsBackToREST(t *testing.T) {
	api := &fakeAPI{channels: map[string]discordChannel{
		"thread-1": {ID: "thread-1", Type: channelTypePublicThread, ParentID: "chan-1"},
		"chan-1":   {ID: "chan-1", Type: 0, ParentID: "cat-1"},
		"cat-1":    {ID: "cat-1", Type: channelTypeCategory, Name: "support"},
	}}
	connector, handler := newTestConnector(t, api)

	connector.handleMessageCreate(context.Background(), discordMessageCreate{
		ID:        "m2",
		ChannelID: "thread-1",
		GuildID:   "g1",
		Content:   "printer jam",
		Author:    discordAuthor{ID: "u1"},
	})
	if len(handler.messages) != 1 || handler.messages[0].CategoryName != "support" {
		t.Fatalf("unexpected messages %+v", handler.messages)
	}
	requests := api.recorded()
	if len(requests) != 3 || requests[0].Auth != "Bot bot-token" {
		t.Fatalf("unexpected requests %+v", requests)
	}

	connector.handleMessageCreate(context.Background(), discordMessageCreate{
		ID: "m3", ChannelID: "thread-1", GuildID: "g1", Content: "again", Author: discordAuthor{ID: "u1"},
	})
	if len(api.recorded()) != 3 {
		t.Fatal("second lookup should be served from cache")
	}
}

func TestMessageCreateIgnoresBotsAndDirectMessages(t *testing.T) {
	api := &fakeAPI{}
	connector, handler := newTestConnector(t, api)
	connector.handleMessageCreate(context.Background(), discordMessageCreate{ChannelID: "c", GuildID: "g", Content: "x", Author: discordAuthor{ID: "b", Bot: true}})
	connector.handleMessageCreate(context.Background(), discordMessageCreate{ChannelID: "dm", Content: "x", Author: discordAuthor{ID: "u"}})
	connector.handleMessageCreate(context.Background(), discordMessageCreate{ChannelID: "c", GuildID: "g", Author: discordAuthor{ID: "u"}})
	if len(handler.messages) != 0 {
		t.Fatalf("expected no messages, got %+v", handler.messages)
	}
}

func TestReplyWithActions(t *testing.T) {
	api := &fakeAPI{}
	connector, _ := newTestConnector(t, api)

	id, err := connector.Reply(context.Background(), "chan-1", "m1", "**Issue:** x", true)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if id != "reply-1" {
		t.Fatalf("unexpected id %q", id)
	}
	request := api.recorded()[0]
	if request.Method != http.MethodPost || request.Path != "/channels/chan-1/messages" {
		t.Fatalf("unexpected request %+v", request)
	}
	reference, _ := request.Body["message_reference"].(map[string]any)
	if reference["message_id"] != "m1" {
		t.Fatalf("expected message reference, got %+v", request.Body)
	}
	rows, _ := request.Body["components"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected one action row, got %+v", request.Body["components"])
	}
	buttons := rows[0].(map[string]any)["components"].([]any)
	if len(buttons) != 2 || buttons[0].(map[string]any)["custom_id"] != "issue_solved" || buttons[1].(map[string]any)["custom_id"] != "issue_unresolved" {
		t.Fatalf("unexpected buttons %+v", buttons)
	}
}

func TestBroadcastAllowsOnlyGivenMentions(t *testing.T) {
	api := &fakeAPI{}
	connector, _ := newTestConnector(t, api)
	if err := connector.Broadcast(context.Background(), "chan-1", "<@&r1>, an issue has been reported by <@u1>.", []string{"r1"}, []string{"u1"}); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	mentions := api.recorded()[0].Body["allowed_mentions"].(map[string]any)
	roles := mentions["roles"].([]any)
	if len(roles) != 1 || roles[0] != "r1" {
		t.Fatalf("unexpected allowed mentions %+v", mentions)
	}
}

func TestClearActionsToleratesDeletedMessage(t *testing.T) {
	api := &fakeAPI{patch404: true}
	connector, _ := newTestConnector(t, api)
	if err := connector.ClearActions(context.Background(), "chan-1", "reply-1"); err != nil {
		t.Fatalf("expected 404 to be tolerated, got %v", err)
	}
	request := api.recorded()[0]
	if request.Method != http.MethodPatch || request.Path != "/channels/chan-1/messages/reply-1" {
		t.Fatalf("unexpected request %+v", request)
	}
	if components, ok := request.Body["components"].([]any); !ok || len(components) != 0 {
		t.Fatalf("expected empty components, got %+v", request.Body)
	}
}

func TestInteractionResponses(t *testing.T) {
	api := &fakeAPI{}
	connector, _ := newTestConnector(t, api)
	ref := session.Interaction{ID: "i1", Token: "tok"}

	if err := connector.RespondPrivate(context.Background(), ref, "hidden"); err != nil {
		t.Fatalf("respond private: %v", err)
	}
	if err := connector.Acknowledge(context.Background(), ref); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if err := connector.CloseResolved(context.Background(), ref, session.ClosingText); err != nil {
		t.Fatalf("close resolved: %v", err)
	}
	requests := api.recorded()
	if len(requests) != 3 || requests[0].Path != "/interactions/i1/tok/callback" {
		t.Fatalf("unexpected requests %+v", requests)
	}
	private := requests[0].Body
	if private["type"].(float64) != responseTypeMessage || private["data"].(map[string]any)["flags"].(float64) != messageFlagEphemeral {
		t.Fatalf("unexpected private response %+v", private)
	}
	if requests[1].Body["type"].(float64) != responseTypeDeferredUpdate {
		t.Fatalf("unexpected ack %+v", requests[1].Body)
	}
	update := requests[2].Body
	if update["type"].(float64) != responseTypeUpdateMessage || update["data"].(map[string]any)["content"] != session.ClosingText {
		t.Fatalf("unexpected update %+v", update)
	}
	if err := connector.Acknowledge(context.Background(), session.Interaction{}); err == nil {
		t.Fatal("expected error without interaction token")
	}
}

func TestCommandInteractionAnswersPrivately(t *testing.T) {
	api := &fakeAPI{}
	connector, handler := newTestConnector(t, api)
	handler.result = triage.CommandResult{Text: triage.IssueAddedText}

	connector.handleInteractionCreate(context.Background(), discordInteractionCreate{
		ID:        "i1",
		Type:      interactionTypeCommand,
		Token:     "tok",
		ChannelID: "chan-1",
		GuildID:   "g1",
		Data: discordInteractionData{
			Name: "add-ifm",
			Options: []discordInteractionOption{
				{Name: "issue", Type: 3, Value: " login fails "},
				{Name: "fix", Type: 3, Value: "reset password"},
			},
		},
		Member: discordInteractionMember{User: discordAuthor{ID: "u1"}, Roles: []string{"admin"}},
	})

	if len(handler.commands) != 1 {
		t.Fatalf("expected one command, got %d", len(handler.commands))
	}
	command := handler.commands[0]
	if command.Options["issue"] != "login fails" || command.UserID != "u1" || command.MemberRoleIDs[0] != "admin" {
		t.Fatalf("unexpected command %+v", command)
	}
	response := api.recorded()[0].Body
	data := response["data"].(map[string]any)
	if data["content"] != triage.IssueAddedText || data["flags"].(float64) != messageFlagEphemeral {
		t.Fatalf("unexpected response %+v", response)
	}
}

func TestComponentInteractionBecomesSignal(t *testing.T) {
	api := &fakeAPI{}
	connector, handler := newTestConnector(t, api)

	connector.handleInteractionCreate(context.Background(), discordInteractionCreate{
		ID:      "i2",
		Type:    interactionTypeComponent,
		Token:   "tok",
		Data:    discordInteractionData{CustomID: "issue_unresolved", ComponentType: componentTypeButton},
		Member:  discordInteractionMember{User: discordAuthor{ID: "u1"}},
		Message: &discordMessageRef{ID: "reply-1"},
	})
	if len(handler.signals) != 1 {
		t.Fatalf("expected one signal, got %d", len(handler.signals))
	}
	signal := handler.signals[0]
	if signal.SessionID != "reply-1" || signal.Action != session.ActionUnresolved || signal.ActorID != "u1" || signal.Interaction.Token != "tok" {
		t.Fatalf("unexpected signal %+v", signal)
	}
	if signal.ReceivedAt.IsZero() {
		t.Fatal("expected the gateway receive time on the signal")
	}
}

func TestRoleExistsUsesCacheThenREST(t *testing.T) {
	api := &fakeAPI{roles: []discordRole{{ID: "r1", Name: "admins"}}}
	connector, _ := newTestConnector(t, api)

	found, err := connector.RoleExists(context.Background(), "g1", "r1")
	if err != nil || !found {
		t.Fatalf("expected role via REST, got found=%v err=%v", found, err)
	}
	found, err = connector.RoleExists(context.Background(), "g1", "r2")
	if err != nil || found {
		t.Fatalf("expected missing role, got found=%v err=%v", found, err)
	}
	if len(api.recorded()) != 1 {
		t.Fatalf("expected a single roles fetch, got %d", len(api.recorded()))
	}

	connector.guilds.deleteRole("g1", "r1")
	if found, _ := connector.RoleExists(context.Background(), "g1", "r1"); found {
		t.Fatal("deleted role should not be found")
	}
}

func TestBuildCommandPayload(t *testing.T) {
	payload := buildDiscordCommandPayload(triage.SlashCommands())
	if len(payload) != 2 {
		t.Fatalf("expected two commands, got %d", len(payload))
	}
	options := payload[0]["options"].([]map[string]any)
	if len(options) != 3 || options[2]["name"] != "img" || options[2]["required"] != false {
		t.Fatalf("unexpected add-ifm options %+v", options)
	}
}

func TestSyncCommandsPerGuild(t *testing.T) {
	api := &fakeAPI{}
	server := httptest.NewServer(api.handler(t))
	defer server.Close()
	connector := New("bot-token", server.URL, "", slog.New(slog.NewTextHandler(io.Discard, nil)), WithCommandGuildIDs([]string{"g1", " g1 ", "g2"}))

	if err := connector.syncCommands(context.Background()); err != nil {
		t.Fatalf("sync commands: %v", err)
	}
	requests := api.recorded()
	if len(requests) != 3 {
		t.Fatalf("expected app lookup plus two guild upserts, got %+v", requests)
	}
	if requests[1].Method != http.MethodPut || requests[1].Path != "/applications/app-1/guilds/g1/commands" {
		t.Fatalf("unexpected upsert %+v", requests[1])
	}
}

func TestRedactInteractionToken(t *testing.T) {
	if got := redactInteractionToken("/interactions/1/secret/callback"); strings.Contains(got, "secret") {
		t.Fatalf("token leaked: %s", got)
	}
}
