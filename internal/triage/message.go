package triage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/memorylog"
	"github.com/dwizi/fixdesk/internal/router"
	"github.com/dwizi/fixdesk/internal/session"
)

const NoSolutionText = "No solution found for the given issue."

type Message struct {
	ID           string
	ChannelID    string
	GuildID      string
	AuthorID     string
	AuthorIsBot  bool
	Text         string
	CategoryName string
	Attachments  []router.Attachment
}

// FormatFix renders the reply posted for a matched record.
func FormatFix(record catalog.IssueRecord) string {
	reply := fmt.Sprintf("**Issue:** %s\n**How to Fix:** %s", record.Issue, record.Fix)
	if strings.TrimSpace(record.Image) != "" {
		reply += "\n" + strings.TrimSpace(record.Image)
	}
	return reply
}

// HandleMessage runs one inbound message through the pipeline. Errors are
// returned for logging only; they never affect other messages.
func (s *Service) HandleMessage(ctx context.Context, message Message) error {
	snapshot := s.settings.Snapshot()
	decision := router.Route(router.Event{
		AuthorIsBot:  message.AuthorIsBot,
		Text:         message.Text,
		CategoryName: message.CategoryName,
		Attachments:  message.Attachments,
	}, router.Scope{MonitoredCategory: snapshot.MonitoredCategory})

	switch decision.Kind {
	case router.TextInput:
		return s.process(ctx, message, decision.Text)
	case router.ExtractThenRoute:
		return s.extractAndProcess(ctx, message, decision.ImageURLs, snapshot.OCRLanguages)
	default:
		s.logger.Debug("message ignored", "message_id", message.ID, "channel_id", message.ChannelID, "reason", decision.Reason)
		return nil
	}
}

// HandleAction forwards a button click to the session it belongs to.
func (s *Service) HandleAction(ctx context.Context, signal session.Signal) error {
	return s.sessions.Signal(ctx, signal)
}

func (s *Service) extractAndProcess(ctx context.Context, message Message, imageURLs []string, languages string) error {
	if s.extractor == nil {
		s.logger.Warn("image attachments skipped, text extraction disabled", "message_id", message.ID, "count", len(imageURLs))
		return nil
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.MaxParallelExtractions)
	for _, imageURL := range imageURLs {
		group.Go(func() error {
			text, err := s.extractor.Extract(groupCtx, imageURL, languages)
			if err != nil {
				s.logger.Error("text extraction failed", "message_id", message.ID, "url", imageURL, "error", err)
				return nil
			}
			if err := s.process(groupCtx, message, text); err != nil {
				s.logger.Error("extracted text processing failed", "message_id", message.ID, "url", imageURL, "error", err)
			}
			return nil
		})
	}
	return group.Wait()
}

func (s *Service) process(ctx context.Context, message Message, raw string) error {
	mainLanguage := s.settings.MainLanguage()
	content, ok, err := s.normalizer.Normalize(ctx, raw, mainLanguage)
	if err != nil {
		return fmt.Errorf("normalize message %s: %w", message.ID, err)
	}
	if !ok {
		return nil
	}

	record, found := s.catalog.Match(ctx, content.Text)
	if !found {
		if _, err := s.messenger.Reply(ctx, message.ChannelID, message.ID, NoSolutionText, false); err != nil {
			return fmt.Errorf("post no solution reply: %w", err)
		}
		s.logger.Info("no matching issue", "message_id", message.ID, "channel_id", message.ChannelID, "source_language", content.SourceLanguage)
		s.record(memorylog.Entry{
			GuildID:   message.GuildID,
			ChannelID: message.ChannelID,
			Outcome:   memorylog.OutcomeNoMatch,
			ActorID:   message.AuthorID,
			Text:      content.Text,
		})
		return nil
	}

	replyID, err := s.messenger.Reply(ctx, message.ChannelID, message.ID, FormatFix(record), true)
	if err != nil {
		return fmt.Errorf("post fix reply: %w", err)
	}
	s.sessions.Open(session.OpenInput{
		MessageID:   replyID,
		ChannelID:   message.ChannelID,
		GuildID:     message.GuildID,
		RequesterID: message.AuthorID,
		Issue:       record.Issue,
	})
	s.logger.Info("issue matched",
		"message_id", message.ID,
		"reply_id", replyID,
		"record_id", record.ID,
		"source_language", content.SourceLanguage,
	)
	s.record(memorylog.Entry{
		GuildID:   message.GuildID,
		ChannelID: message.ChannelID,
		Outcome:   memorylog.OutcomeMatched,
		ActorID:   message.AuthorID,
		Text:      "matched issue: " + record.Issue,
	})
	return nil
}
