package catalog

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dwizi/fixdesk/internal/triageerr"
)

// IssueRecord is one known issue and the fix shown when a message mentions it.
// Records are never mutated after creation.
type IssueRecord struct {
	ID        string    `json:"id,omitempty"`
	Issue     string    `json:"issue"`
	Fix       string    `json:"fix"`
	Image     string    `json:"img,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type NewRecordInput struct {
	Issue     string
	Fix       string
	Image     string
	CreatedBy string
}

// NewRecord validates input and stamps the record with an id and creation time.
func NewRecord(input NewRecordInput) (IssueRecord, error) {
	issue := strings.TrimSpace(input.Issue)
	fix := strings.TrimSpace(input.Fix)
	image := strings.TrimSpace(input.Image)
	if issue == "" {
		return IssueRecord{}, fmt.Errorf("%w: issue is required", triageerr.ErrInvalidInput)
	}
	if fix == "" {
		return IssueRecord{}, fmt.Errorf("%w: fix is required", triageerr.ErrInvalidInput)
	}
	if image != "" && !isHTTPURL(image) {
		return IssueRecord{}, fmt.Errorf("%w: image must be an http(s) url", triageerr.ErrInvalidInput)
	}
	return IssueRecord{
		ID:        uuid.NewString(),
		Issue:     issue,
		Fix:       fix,
		Image:     image,
		CreatedBy: strings.TrimSpace(input.CreatedBy),
		CreatedAt: time.Now().UTC(),
	}, nil
}

func isHTTPURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}
