package router

import (
	"reflect"
	"testing"
)

func TestRoute(t *testing.T) {
	scope := Scope{MonitoredCategory: "support"}
	tests := []struct {
		name   string
		event  Event
		kind   Kind
		reason string
		images []string
	}{
		{
			name:   "bot author",
			event:  Event{AuthorIsBot: true, Text: "login fails", CategoryName: "support"},
			kind:   Ignored,
			reason: "bot_author",
		},
		{
			name:   "other category",
			event:  Event{Text: "login fails", CategoryName: "general"},
			kind:   Ignored,
			reason: "outside_monitored_category",
		},
		{
			name:   "category match is exact",
			event:  Event{Text: "login fails", CategoryName: "Support"},
			kind:   Ignored,
			reason: "outside_monitored_category",
		},
		{
			name:   "no category",
			event:  Event{Text: "login fails"},
			kind:   Ignored,
			reason: "outside_monitored_category",
		},
		{
			name:   "empty content",
			event:  Event{Text: "  ", CategoryName: "support"},
			kind:   Ignored,
			reason: "empty_content",
		},
		{
			name:   "non image attachment only",
			event:  Event{CategoryName: "support", Attachments: []Attachment{{URL: "https://cdn/x/log.txt", Filename: "log.txt", ContentType: "text/plain"}}},
			kind:   Ignored,
			reason: "empty_content",
		},
		{
			name:  "text",
			event: Event{Text: "My login fails", CategoryName: "support"},
			kind:  TextInput,
		},
		{
			name: "images win over text",
			event: Event{
				Text:         "see screenshot",
				CategoryName: "support",
				Attachments: []Attachment{
					{URL: "https://cdn/a.png", ContentType: "image/png"},
					{URL: "https://cdn/notes.txt", Filename: "notes.txt"},
					{URL: "https://cdn/b.JPG?ex=1", Filename: ""},
				},
			},
			kind:   ExtractThenRoute,
			images: []string{"https://cdn/a.png", "https://cdn/b.JPG?ex=1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			decision := Route(tc.event, scope)
			if decision.Kind != tc.kind {
				t.Fatalf("expected %s, got %s", tc.kind, decision.Kind)
			}
			if decision.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %q", tc.reason, decision.Reason)
			}
			if tc.kind == ExtractThenRoute && !reflect.DeepEqual(decision.ImageURLs, tc.images) {
				t.Fatalf("unexpected images %v", decision.ImageURLs)
			}
			if tc.kind == TextInput && decision.Text != tc.event.Text {
				t.Fatalf("expected text to pass through, got %q", decision.Text)
			}
		})
	}
}

func TestIsImage(t *testing.T) {
	if !IsImage(Attachment{URL: "https://cdn/x", ContentType: "IMAGE/webp"}) {
		t.Fatal("content type should be enough")
	}
	if !IsImage(Attachment{URL: "https://cdn/x", Filename: "Screen Shot.jpeg"}) {
		t.Fatal("extension should be enough")
	}
	if IsImage(Attachment{Filename: "a.png"}) {
		t.Fatal("attachment without url cannot be extracted")
	}
}
