// Package settings holds the bot settings an administrator can change at
// runtime, and the YAML file they are persisted to.
package settings

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/dwizi/fixdesk/internal/triageerr"
)

const (
	keyAdminRole         = "admin_role"
	keyMonitoredCategory = "monitored_category"
	keyMainLanguage      = "main_language"
	keyOCRLanguages      = "ocr_languages"
)

type Settings struct {
	// AdminRoleID is the guild role allowed to run admin commands and
	// mentioned on escalation.
	AdminRoleID string
	// MonitoredCategory is the channel category name messages must be posted under.
	MonitoredCategory string
	MainLanguage      string
	// OCRLanguages is passed through to the text extraction service, e.g. "eng+fra".
	OCRLanguages string
}

func Defaults() Settings {
	return Settings{
		MonitoredCategory: "support",
		MainLanguage:      "en",
		OCRLanguages:      "eng",
	}
}

// NormalizeLanguage validates a language code and returns its canonical BCP 47 form.
func NormalizeLanguage(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("%w: language code is required", triageerr.ErrInvalidInput)
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a language code", triageerr.ErrInvalidInput, trimmed)
	}
	if tag == language.Und {
		return "", fmt.Errorf("%w: %q is not a language code", triageerr.ErrInvalidInput, trimmed)
	}
	return tag.String(), nil
}
