package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/fixdesk/internal/catalog"
	"github.com/dwizi/fixdesk/internal/memorylog"
	"github.com/dwizi/fixdesk/internal/triageerr"
)

const (
	CommandAddIssue    = "add-ifm"
	CommandSetLanguage = "setlang"

	PermissionDeniedText   = "**You don't have permission to use this command**"
	IssueAddedText         = "**Issue added successfully.**"
	MissingLanguageText    = "Please provide a language code to set as the main language."
	issueSaveFailedText    = "Could not save the issue right now. Please try again later."
	languageSaveFailedText = "Could not save the main language right now. Please try again later."
	unknownCommandText     = "Unknown command."
)

type SlashOption struct {
	Name        string
	Description string
	Required    bool
}

type SlashCommand struct {
	Name        string
	Description string
	Options     []SlashOption
}

// SlashCommands lists the admin commands registered with the chat platform.
func SlashCommands() []SlashCommand {
	return []SlashCommand{
		{
			Name:        CommandAddIssue,
			Description: "Add an issue with its fix and an optional image to the catalog",
			Options: []SlashOption{
				{Name: "issue", Description: "The issue description", Required: true},
				{Name: "fix", Description: "The fix for the issue", Required: true},
				{Name: "img", Description: "Image URL for the fix (optional)"},
			},
		},
		{
			Name:        CommandSetLanguage,
			Description: "Set the main language for the bot",
			Options: []SlashOption{
				{Name: "lang", Description: "The language code to set as the main language", Required: true},
			},
		},
	}
}

type Command struct {
	Name          string
	Options       map[string]string
	GuildID       string
	ChannelID     string
	UserID        string
	MemberRoleIDs []string
}

func (c Command) option(name string) string {
	return strings.TrimSpace(c.Options[name])
}

// CommandResult is always shown privately to the caller.
type CommandResult struct {
	Text string
	Err  error
}

func (s *Service) HandleCommand(ctx context.Context, command Command) CommandResult {
	name := strings.TrimSpace(strings.ToLower(command.Name))
	if name != CommandAddIssue && name != CommandSetLanguage {
		s.logger.Warn("unknown command", "command", command.Name, "user_id", command.UserID)
		return CommandResult{Text: unknownCommandText, Err: triageerr.ErrUnknownCommand}
	}
	if !s.isAdmin(command) {
		s.logger.Info("command denied",
			"command", name,
			"user_id", command.UserID,
			"guild_id", command.GuildID,
		)
		return CommandResult{Text: PermissionDeniedText, Err: triageerr.ErrPermissionDenied}
	}

	var result CommandResult
	switch name {
	case CommandAddIssue:
		result = s.addIssue(ctx, command)
	case CommandSetLanguage:
		result = s.setLanguage(command)
	}
	s.record(memorylog.Entry{
		GuildID:   command.GuildID,
		ChannelID: command.ChannelID,
		Outcome:   memorylog.OutcomeCommand,
		ActorID:   command.UserID,
		Text:      fmt.Sprintf("/%s: %s", name, result.Text),
	})
	return result
}

func (s *Service) isAdmin(command Command) bool {
	adminRole := strings.TrimSpace(s.settings.Snapshot().AdminRoleID)
	if adminRole == "" {
		return false
	}
	for _, roleID := range command.MemberRoleIDs {
		if strings.TrimSpace(roleID) == adminRole {
			return true
		}
	}
	return false
}

func (s *Service) addIssue(ctx context.Context, command Command) CommandResult {
	record, err := catalog.NewRecord(catalog.NewRecordInput{
		Issue:     command.option("issue"),
		Fix:       command.option("fix"),
		Image:     command.option("img"),
		CreatedBy: command.UserID,
	})
	if err != nil {
		return CommandResult{Text: "Could not add issue: " + strings.TrimPrefix(err.Error(), triageerr.ErrInvalidInput.Error()+": "), Err: err}
	}
	if err := s.catalog.Append(ctx, record); err != nil {
		s.logger.Error("add issue failed", "user_id", command.UserID, "error", err)
		return CommandResult{Text: issueSaveFailedText, Err: err}
	}
	s.logger.Info("issue added", "record_id", record.ID, "issue", record.Issue, "user_id", command.UserID)
	return CommandResult{Text: IssueAddedText}
}

func (s *Service) setLanguage(command Command) CommandResult {
	code := command.option("lang")
	if code == "" {
		return CommandResult{Text: MissingLanguageText, Err: triageerr.ErrInvalidInput}
	}
	applied, err := s.settings.SetMainLanguage(code)
	if err != nil {
		if errors.Is(err, triageerr.ErrInvalidInput) {
			return CommandResult{Text: fmt.Sprintf("%q is not a valid language code.", code), Err: err}
		}
		s.logger.Error("set main language failed", "user_id", command.UserID, "language", code, "error", err)
		return CommandResult{Text: languageSaveFailedText, Err: err}
	}
	return CommandResult{Text: "Main language set to: " + applied}
}
