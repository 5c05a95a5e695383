package triage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/memorylog"
	"github.com/dwizi/fixdesk/internal/normalize"
	"github.com/dwizi/fixdesk/internal/router"
	"github.com/dwizi/fixdesk/internal/session"
	"github.com/dwizi/fixdesk/internal/settings"
	"github.com/dwizi/fixdesk/internal/triageerr"
)

type memoryStore struct {
	mu      sync.Mutex
	records []catalog.IssueRecord
}

func (m *memoryStore) ReadAll(ctx context.Context) ([]catalog.IssueRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.IssueRecord(nil), m.records...), nil
}

func (m *memoryStore) Append(ctx context.Context, record catalog.IssueRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

type memorySettings struct {
	mu      sync.Mutex
	current settings.Settings
	writes  []string
}

func (m *memorySettings) Read() (settings.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *memorySettings) WriteMainLanguage(value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.MainLanguage = value
	m.writes = append(m.writes, value)
	return nil
}

type fakeTranslator struct {
	mu      sync.Mutex
	source  string
	targets []string
}

func (f *fakeTranslator) Detect(ctx context.Context, text string) (string, error) {
	return f.source, nil
}

func (f *fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	return text, nil
}

type sentReply struct {
	channelID   string
	replyTo     string
	text        string
	withActions bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeMessenger) Reply(ctx context.Context, channelID, messageID, text string, withActions bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.replies = append(f.replies, sentReply{channelID: channelID, replyTo: messageID, text: text, withActions: withActions})
	return fmt.Sprintf("reply-%d", len(f.replies)), nil
}

func (f *fakeMessenger) sent() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentReply(nil), f.replies...)
}

type fakeEffects struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeEffects) add(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEffects) CloseResolved(ctx context.Context, interaction session.Interaction, text string) error {
	f.add("close:" + text)
	return nil
}

func (f *fakeEffects) RespondPrivate(ctx context.Context, interaction session.Interaction, text string) error {
	f.add("private:" + text)
	return nil
}

func (f *fakeEffects) Acknowledge(ctx context.Context, interaction session.Interaction) error {
	f.add("ack")
	return nil
}

func (f *fakeEffects) RoleExists(ctx context.Context, guildID, roleID string) (bool, error) {
	return true, nil
}

func (f *fakeEffects) Broadcast(ctx context.Context, channelID, text string, roleIDs, userIDs []string) error {
	f.add("broadcast:" + text)
	return nil
}

func (f *fakeEffects) ClearActions(ctx context.Context, channelID, messageID string) error {
	f.add("clear:" + messageID)
	return nil
}

type fakeExtractor struct {
	texts map[string]string
}

func (f *fakeExtractor) Extract(ctx context.Context, imageURL, languages string) (string, error) {
	text, ok := f.texts[imageURL]
	if !ok {
		return "", errors.New("unreadable image")
	}
	return text, nil
}

type harness struct {
	service    *Service
	store      *memoryStore
	settings   *memorySettings
	runtime    *settings.Runtime
	translator *fakeTranslator
	messenger  *fakeMessenger
	effects    *fakeEffects
	sessions   *session.Manager
	transcript *memorylog.Log
	outcomes   chan session.Outcome
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{
		store: &memoryStore{records: []catalog.IssueRecord{
			{ID: "r1", Issue: "login fails", Fix: "reset password"},
		}},
		settings: &memorySettings{current: settings.Settings{
			AdminRoleID:       "admin",
			MonitoredCategory: "support",
			MainLanguage:      "en",
			OCRLanguages:      "eng",
		}},
		translator: &fakeTranslator{source: "en"},
		messenger:  &fakeMessenger{},
		effects:    &fakeEffects{},
		transcript: memorylog.New(t.TempDir()),
		outcomes:   make(chan session.Outcome, 4),
	}
	runtime, err := settings.NewRuntime(h.settings, logger)
	if err != nil {
		t.Fatalf("settings runtime: %v", err)
	}
	h.runtime = runtime
	h.service = New(Dependencies{
		Catalog:    catalog.New(h.store, logger),
		Settings:   runtime,
		Normalizer: normalize.New(h.translator, normalize.PolicyFallback, logger),
		Extractor:  &fakeExtractor{texts: map[string]string{"https://cdn/login.png": "ERROR: Login Fails (code 17)"}},
		Messenger:  h.messenger,
		Transcript: h.transcript,
	}, Config{}, logger)
	h.sessions = session.NewManager(h.effects, session.Options{
		Window:        time.Minute,
		RequesterOnly: true,
		AdminRole:     func() string { return runtime.Snapshot().AdminRoleID },
		OnOutcome: func(outcome session.Outcome) {
			h.service.RecordOutcome(outcome)
			h.outcomes <- outcome
		},
	}, logger)
	h.service.sessions = h.sessions
	t.Cleanup(func() { h.sessions.ExpireAll(context.Background()) })
	return h
}

func supportMessage(text string) Message {
	return Message{
		ID:           "m1",
		ChannelID:    "c1",
		GuildID:      "g1",
		AuthorID:     "u1",
		Text:         text,
		CategoryName: "support",
	}
}

func TestMatchThenResolve(t *testing.T) {
	h := newHarness(t)
	if err := h.service.HandleMessage(context.Background(), supportMessage("My login fails constantly")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := h.messenger.sent()
	if len(replies) != 1 {
		t.Fatalf("expected one reply, got %+v", replies)
	}
	if !strings.Contains(replies[0].text, "reset password") || !replies[0].withActions || replies[0].replyTo != "m1" {
		t.Fatalf("unexpected reply %+v", replies[0])
	}
	if replies[0].text != "**Issue:** login fails\n**How to Fix:** reset password" {
		t.Fatalf("unexpected reply text %q", replies[0].text)
	}
	if len(h.translator.targets) != 0 {
		t.Fatal("no translation expected when the message is already in the main language")
	}
	if h.sessions.Len() != 1 {
		t.Fatalf("expected an open session, got %d", h.sessions.Len())
	}

	err := h.service.HandleAction(context.Background(), session.Signal{SessionID: "reply-1", Action: session.ActionResolved, ActorID: "u1"})
	if err != nil {
		t.Fatalf("handle action: %v", err)
	}
	outcome := <-h.outcomes
	if outcome.State != session.StateResolved {
		t.Fatalf("expected resolved, got %s", outcome.State)
	}
	if len(h.effects.calls) != 1 || h.effects.calls[0] != "close:"+session.ClosingText {
		t.Fatalf("unexpected effects %v", h.effects.calls)
	}
	data, err := os.ReadFile(h.transcript.Path("discord", "g1", "c1"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(data), "`MATCHED`") || !strings.Contains(string(data), "`RESOLVED`") {
		t.Fatalf("unexpected transcript %s", data)
	}
}

func TestNoMatchCreatesNoSession(t *testing.T) {
	h := newHarness(t)
	if err := h.service.HandleMessage(context.Background(), supportMessage("everything is broken")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := h.messenger.sent()
	if len(replies) != 1 || replies[0].text != NoSolutionText || replies[0].withActions {
		t.Fatalf("unexpected replies %+v", replies)
	}
	if h.sessions.Len() != 0 {
		t.Fatal("no session expected without a match")
	}
}

func TestIgnoredMessagesGetNoReply(t *testing.T) {
	h := newHarness(t)
	outside := supportMessage("login fails")
	outside.CategoryName = "general"
	bot := supportMessage("login fails")
	bot.AuthorIsBot = true
	for _, message := range []Message{outside, bot, supportMessage("   ")} {
		if err := h.service.HandleMessage(context.Background(), message); err != nil {
			t.Fatalf("handle message: %v", err)
		}
	}
	if len(h.messenger.sent()) != 0 {
		t.Fatalf("expected no replies, got %+v", h.messenger.sent())
	}
}

func TestImageAttachmentsAreExtracted(t *testing.T) {
	h := newHarness(t)
	message := supportMessage("this text is ignored")
	message.Attachments = []router.Attachment{
		{URL: "https://cdn/login.png", ContentType: "image/png"},
		{URL: "https://cdn/blurry.png", ContentType: "image/png"},
	}
	if err := h.service.HandleMessage(context.Background(), message); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := h.messenger.sent()
	if len(replies) != 1 || !strings.Contains(replies[0].text, "reset password") {
		t.Fatalf("expected one fix reply from the readable image, got %+v", replies)
	}
}

func TestForeignLanguageIsTranslated(t *testing.T) {
	h := newHarness(t)
	h.translator.source = "es"
	if err := h.service.HandleMessage(context.Background(), supportMessage("login fails")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(h.translator.targets) != 1 || h.translator.targets[0] != "en" {
		t.Fatalf("expected translation into en, got %v", h.translator.targets)
	}
}

func TestReplyFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.messenger.err = errors.New("discord down")
	if err := h.service.HandleMessage(context.Background(), supportMessage("login fails")); err == nil {
		t.Fatal("expected error")
	}
	if h.sessions.Len() != 0 {
		t.Fatal("no session expected when the reply could not be posted")
	}
}

func TestNonAdminCannotAddIssue(t *testing.T) {
	h := newHarness(t)
	result := h.service.HandleCommand(context.Background(), Command{
		Name:          CommandAddIssue,
		Options:       map[string]string{"issue": "printer jam", "fix": "open tray"},
		UserID:        "u2",
		MemberRoleIDs: []string{"member"},
	})
	if result.Text != PermissionDeniedText || !errors.Is(result.Err, triageerr.ErrPermissionDenied) {
		t.Fatalf("unexpected result %+v", result)
	}
	records, _ := h.store.ReadAll(context.Background())
	if len(records) != 1 {
		t.Fatalf("catalog must be unchanged, got %d records", len(records))
	}
}

func TestAdminAddsIssue(t *testing.T) {
	h := newHarness(t)
	result := h.service.HandleCommand(context.Background(), Command{
		Name:          CommandAddIssue,
		Options:       map[string]string{"issue": "printer jam", "fix": "open tray", "img": "https://cdn/tray.png"},
		UserID:        "u9",
		MemberRoleIDs: []string{"member", "admin"},
	})
	if result.Text != IssueAddedText || result.Err != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	records, _ := h.store.ReadAll(context.Background())
	if len(records) != 2 || records[1].Issue != "printer jam" || records[1].CreatedBy != "u9" {
		t.Fatalf("unexpected records %+v", records)
	}

	if err := h.service.HandleMessage(context.Background(), supportMessage("the PRINTER JAM again")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	replies := h.messenger.sent()
	if len(replies) != 1 || !strings.HasSuffix(replies[0].text, "\nhttps://cdn/tray.png") {
		t.Fatalf("expected new issue to match with image, got %+v", replies)
	}
}

func TestAddIssueValidation(t *testing.T) {
	h := newHarness(t)
	result := h.service.HandleCommand(context.Background(), Command{
		Name:          CommandAddIssue,
		Options:       map[string]string{"issue": "printer jam"},
		MemberRoleIDs: []string{"admin"},
	})
	if !errors.Is(result.Err, triageerr.ErrInvalidInput) || !strings.HasPrefix(result.Text, "Could not add issue") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestAdminSetsLanguage(t *testing.T) {
	h := newHarness(t)
	result := h.service.HandleCommand(context.Background(), Command{
		Name:          CommandSetLanguage,
		Options:       map[string]string{"lang": "fr"},
		MemberRoleIDs: []string{"admin"},
	})
	if result.Text != "Main language set to: fr" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(h.settings.writes) != 1 || h.settings.writes[0] != "fr" {
		t.Fatalf("expected persisted fr, got %v", h.settings.writes)
	}

	h.translator.source = "en"
	if err := h.service.HandleMessage(context.Background(), supportMessage("login fails")); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if len(h.translator.targets) != 1 || h.translator.targets[0] != "fr" {
		t.Fatalf("expected translation into fr, got %v", h.translator.targets)
	}
}

func TestSetLanguageErrors(t *testing.T) {
	h := newHarness(t)
	missing := h.service.HandleCommand(context.Background(), Command{Name: CommandSetLanguage, MemberRoleIDs: []string{"admin"}})
	if missing.Text != MissingLanguageText {
		t.Fatalf("unexpected result %+v", missing)
	}
	invalid := h.service.HandleCommand(context.Background(), Command{
		Name:          CommandSetLanguage,
		Options:       map[string]string{"lang": "not a language"},
		MemberRoleIDs: []string{"admin"},
	})
	if !errors.Is(invalid.Err, triageerr.ErrInvalidInput) {
		t.Fatalf("unexpected result %+v", invalid)
	}
	if h.runtime.MainLanguage() != "en" {
		t.Fatalf("main language must be unchanged, got %q", h.runtime.MainLanguage())
	}
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t)
	result := h.service.HandleCommand(context.Background(), Command{Name: "nope", MemberRoleIDs: []string{"admin"}})
	if !errors.Is(result.Err, triageerr.ErrUnknownCommand) {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSlashCommands(t *testing.T) {
	commands := SlashCommands()
	if len(commands) != 2 || commands[0].Name != CommandAddIssue || commands[1].Name != CommandSetLanguage {
		t.Fatalf("unexpected commands %+v", commands)
	}
	if len(commands[0].Options) != 3 || commands[0].Options[2].Required {
		t.Fatalf("img option must be optional: %+v", commands[0].Options)
	}
}
