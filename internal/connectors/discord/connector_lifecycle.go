package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

func (c *Connector) Start(ctx context.Context) error {
	if c.reporter != nil {
		c.reporter.Starting(componentName, "starting")
	}
	if c.token == "" {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "token missing")
		}
		c.logger.Info("connector disabled, token missing")
		<-ctx.Done()
		return nil
	}
	if c.handler == nil {
		if c.reporter != nil {
			c.reporter.Disabled(componentName, "handler missing")
		}
		c.logger.Info("connector disabled, handler missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "mode", "gateway")
	if c.commandSync {
		if err := c.syncCommands(ctx); err != nil {
			c.logger.Warn("discord command sync failed", "error", err)
		} else {
			c.logger.Info("discord commands synced", "guild_count", len(c.commandGuildIDs))
		}
	}
	for {
		if ctx.Err() != nil {
			c.stopped()
			return nil
		}
		if err := c.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				c.stopped()
				return nil
			}
			if c.reporter != nil {
				c.reporter.Degrade(componentName, "gateway session error", err)
			}
			c.logger.Error("discord session ended, reconnecting", "error", err)
			select {
			case <-ctx.Done():
				c.stopped()
				return nil
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Connector) stopped() {
	if c.reporter != nil {
		c.reporter.Stopped(componentName, "stopped")
	}
	c.logger.Info("connector stopped")
}

func (c *Connector) runSession(ctx context.Context) error {
	resume := c.resumeState()
	dialURL := c.gatewayURL
	if resume.ok() {
		dialURL = resumeDialURL(resume.url)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, dialURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not observe ctx; closing the socket unblocks it.
	stopClose := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stopClose()

	var (
		writeMu      sync.Mutex
		sequence     atomic.Int64
		heartbeatSec = 30 * time.Second
	)
	if resume.ok() {
		sequence.Store(resume.sequence)
	}

	readHelloDone := false
	for !readHelloDone {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read hello: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("decode hello payload: %w", err)
		}
		if envelope.Op != 10 {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return fmt.Errorf("decode hello body: %w", err)
		}
		heartbeatSec = time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond
		readHelloDone = true
	}

	if resume.ok() {
		if err := c.sendResume(conn, &writeMu, resume); err != nil {
			return err
		}
		c.logger.Info("resuming gateway session", "session_id", resume.sessionID, "seq", resume.sequence)
	} else if err := c.sendIdentify(conn, &writeMu); err != nil {
		return err
	}
	if c.reporter != nil {
		c.reporter.Beat(componentName, "gateway session established")
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, conn, &writeMu, &sequence, heartbeatSec)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}

		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if envelope.S != nil {
			sequence.Store(*envelope.S)
			c.saveSequence(*envelope.S)
		}

		switch envelope.Op {
		case 0:
			if c.reporter != nil {
				c.reporter.Beat(componentName, "gateway event received")
			}
			c.handleDispatch(ctx, envelope)
		case 1:
			if err := c.sendHeartbeat(conn, &writeMu, sequence.Load()); err != nil {
				return err
			}
		case 7:
			return fmt.Errorf("gateway requested reconnect")
		case 9:
			var resumable bool
			_ = json.Unmarshal(envelope.D, &resumable)
			if !resumable {
				c.clearResume()
			}
			return fmt.Errorf("gateway invalid session (resumable=%t)", resumable)
		}
	}
}

// handleDispatch routes an op 0 event. Cache updates run inline so later
// events see them; user events go to the dispatcher.
func (c *Connector) handleDispatch(ctx context.Context, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err == nil {
			c.botUserID = strings.TrimSpace(ready.User.ID)
			c.setResume(strings.TrimSpace(ready.SessionID), strings.TrimSpace(ready.ResumeGatewayURL))
		}
	case "RESUMED":
		c.logger.Info("gateway session resumed")
	case "GUILD_CREATE":
		var guild discordGuildCreate
		if err := json.Unmarshal(envelope.D, &guild); err != nil {
			c.logger.Error("decode guild create failed", "error", err)
			return
		}
		c.guilds.loadGuild(guild)
		c.logger.Info("guild cached", "guild_id", guild.ID, "channels", len(guild.Channels), "roles", len(guild.Roles))
	case "CHANNEL_CREATE", "CHANNEL_UPDATE", "THREAD_CREATE", "THREAD_UPDATE":
		var channel discordChannel
		if err := json.Unmarshal(envelope.D, &channel); err != nil {
			c.logger.Error("decode channel event failed", "event", envelope.T, "error", err)
			return
		}
		c.guilds.putChannel(channel)
	case "CHANNEL_DELETE", "THREAD_DELETE":
		var channel discordChannel
		if err := json.Unmarshal(envelope.D, &channel); err != nil {
			c.logger.Error("decode channel event failed", "event", envelope.T, "error", err)
			return
		}
		c.guilds.deleteChannel(channel.ID)
	case "GUILD_ROLE_CREATE", "GUILD_ROLE_UPDATE":
		var event discordGuildRoleEvent
		if err := json.Unmarshal(envelope.D, &event); err != nil {
			c.logger.Error("decode role event failed", "event", envelope.T, "error", err)
			return
		}
		c.guilds.putRole(event.GuildID, event.Role)
	case "GUILD_ROLE_DELETE":
		var event discordGuildRoleEvent
		if err := json.Unmarshal(envelope.D, &event); err != nil {
			c.logger.Error("decode role event failed", "event", envelope.T, "error", err)
			return
		}
		c.guilds.deleteRole(event.GuildID, event.RoleID)
	case "MESSAGE_CREATE":
		var message discordMessageCreate
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		c.handleMessageCreate(ctx, message)
	case "INTERACTION_CREATE":
		var interaction discordInteractionCreate
		if err := json.Unmarshal(envelope.D, &interaction); err != nil {
			c.logger.Error("decode interaction create failed", "error", err)
			return
		}
		c.handleInteractionCreate(ctx, interaction)
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, seq *atomic.Int64, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.sendHeartbeat(conn, writeMu, seq.Load()); err != nil {
				c.logger.Error("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Connector) sendIdentify(conn *websocket.Conn, writeMu *sync.Mutex) error {
	payload := map[string]any{
		"op": 2,
		"d": map[string]any{
			"token": c.token,
			"intents": discordIntentGuilds |
				discordIntentGuildMessages |
				discordIntentMessageContents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "fixdesk",
				"device":  "fixdesk",
			},
		},
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

func (c *Connector) sendResume(conn *websocket.Conn, writeMu *sync.Mutex, resume gatewayResume) error {
	payload := map[string]any{
		"op": 6,
		"d": map[string]any{
			"token":      c.token,
			"session_id": resume.sessionID,
			"seq":        resume.sequence,
		},
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send resume: %w", err)
	}
	return nil
}

func (c *Connector) resumeState() gatewayResume {
	c.resumeMu.Lock()
	defer c.resumeMu.Unlock()
	return c.resume
}

func (c *Connector) setResume(sessionID, url string) {
	c.resumeMu.Lock()
	defer c.resumeMu.Unlock()
	c.resume.sessionID = sessionID
	c.resume.url = url
}

func (c *Connector) saveSequence(seq int64) {
	c.resumeMu.Lock()
	defer c.resumeMu.Unlock()
	c.resume.sequence = seq
}

func (c *Connector) clearResume() {
	c.resumeMu.Lock()
	defer c.resumeMu.Unlock()
	c.resume = gatewayResume{}
}

// resumeDialURL adds the version query Discord leaves off resume_gateway_url.
func resumeDialURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if strings.Contains(base, "?") {
		return base
	}
	return base + "/?v=10&encoding=json"
}

func (c *Connector) sendHeartbeat(conn *websocket.Conn, writeMu *sync.Mutex, seq int64) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	payload := map[string]any{
		"op": 1,
		"d":  seq,
	}
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}
