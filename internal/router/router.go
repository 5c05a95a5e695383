// Package router decides whether an inbound chat message enters the triage
// pipeline and in which form.
package router

import (
	"path"
	"strings"
)

type Kind int

const (
	Ignored Kind = iota
	TextInput
	ExtractThenRoute
)

func (k Kind) String() string {
	switch k {
	case TextInput:
		return "text_input"
	case ExtractThenRoute:
		return "extract_then_route"
	default:
		return "ignored"
	}
}

type Attachment struct {
	URL         string
	Filename    string
	ContentType string
}

type Event struct {
	AuthorIsBot  bool
	Text         string
	CategoryName string
	Attachments  []Attachment
}

// Scope is the part of the settings the router needs.
type Scope struct {
	MonitoredCategory string
}

type Decision struct {
	Kind      Kind
	Reason    string
	Text      string
	ImageURLs []string
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// Route classifies event. Messages with image attachments are routed through
// text extraction and their own text is not used.
func Route(event Event, scope Scope) Decision {
	if event.AuthorIsBot {
		return Decision{Kind: Ignored, Reason: "bot_author"}
	}
	if scope.MonitoredCategory == "" || event.CategoryName != scope.MonitoredCategory {
		return Decision{Kind: Ignored, Reason: "outside_monitored_category"}
	}
	images := make([]string, 0, len(event.Attachments))
	for _, attachment := range event.Attachments {
		if IsImage(attachment) {
			images = append(images, attachment.URL)
		}
	}
	if len(images) > 0 {
		return Decision{Kind: ExtractThenRoute, ImageURLs: images}
	}
	if strings.TrimSpace(event.Text) == "" {
		return Decision{Kind: Ignored, Reason: "empty_content"}
	}
	return Decision{Kind: TextInput, Text: event.Text}
}

func IsImage(attachment Attachment) bool {
	if strings.TrimSpace(attachment.URL) == "" {
		return false
	}
	contentType := strings.ToLower(strings.TrimSpace(attachment.ContentType))
	if strings.HasPrefix(contentType, "image/") {
		return true
	}
	name := attachment.Filename
	if name == "" {
		name = attachment.URL
		if index := strings.IndexAny(name, "?#"); index >= 0 {
			name = name[:index]
		}
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}
