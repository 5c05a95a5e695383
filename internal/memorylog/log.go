// Package memorylog keeps a markdown transcript of triage outcomes per chat
// channel so operators can review what the bot answered.
package memorylog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	OutcomeMatched   = "matched"
	OutcomeNoMatch   = "no_match"
	OutcomeResolved  = "resolved"
	OutcomeEscalated = "escalated"
	OutcomeExpired   = "expired"
	OutcomeCommand   = "command"
)

type Entry struct {
	Connector string
	GuildID   string
	ChannelID string
	Outcome   string
	ActorID   string
	Text      string
	Timestamp time.Time
}

// Log appends entries below root. A Log with an empty root discards entries.
type Log struct {
	root string
	mu   sync.Mutex
}

func New(root string) *Log {
	return &Log{root: strings.TrimSpace(root)}
}

func (l *Log) Root() string {
	if l == nil {
		return ""
	}
	return l.root
}

// Path returns the transcript file for a channel.
func (l *Log) Path(connector, guildID, channelID string) string {
	return filepath.Join(l.root, "logs", "outcomes", segmentOr(connector, "unknown"), segmentOr(guildID, "direct"), segmentOr(channelID, "unknown")+".md")
}

var pathSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (l *Log) Append(entry Entry) error {
	if l == nil || l.root == "" {
		return nil
	}
	text := strings.TrimSpace(entry.Text)
	outcome := strings.TrimSpace(strings.ToLower(entry.Outcome))
	if text == "" && outcome == "" {
		return nil
	}
	if outcome == "" {
		outcome = "note"
	}
	timestamp := entry.Timestamp.UTC()
	if entry.Timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	actor := strings.TrimSpace(entry.ActorID)
	if actor == "" {
		actor = "system"
	}

	logPath := l.Path(entry.Connector, entry.GuildID, entry.ChannelID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return err
	}

	header := ""
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		header = fmt.Sprintf("# Triage Log\n\n- connector: `%s`\n- guild_id: `%s`\n- channel_id: `%s`\n\n",
			segmentOr(entry.Connector, "unknown"),
			strings.TrimSpace(entry.GuildID),
			strings.TrimSpace(entry.ChannelID),
		)
	}
	body := fmt.Sprintf(
		"## %s `%s`\n- actor: `%s`\n\n%s\n\n",
		timestamp.Format(time.RFC3339),
		strings.ToUpper(outcome),
		actor,
		text,
	)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if header != "" {
		if _, err := file.WriteString(header); err != nil {
			return err
		}
	}
	if _, err := file.WriteString(body); err != nil {
		return err
	}
	return nil
}

func segmentOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.ReplaceAll(trimmed, " ", "-")
	trimmed = pathSanitizer.ReplaceAllString(trimmed, "-")
	trimmed = strings.ToLower(strings.Trim(trimmed, "-."))
	if trimmed == "" {
		return fallback
	}
	return trimmed
}
