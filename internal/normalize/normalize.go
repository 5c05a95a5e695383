// Package normalize turns raw user text into lower-cased text in the main
// language so it can be matched against the issue catalog.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"

	"github.com/dwizi/fixdesk/internal/translate"
)

// DetectFailurePolicy decides what happens when the source language cannot be
// detected.
type DetectFailurePolicy string

const (
	// PolicyFallback matches on the lower-cased original text.
	PolicyFallback DetectFailurePolicy = "fallback"
	// PolicyAbort drops the event.
	PolicyAbort DetectFailurePolicy = "abort"
)

func ParsePolicy(value string) DetectFailurePolicy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(PolicyAbort):
		return PolicyAbort
	default:
		return PolicyFallback
	}
}

// Content is text ready for matching. It is never persisted.
type Content struct {
	Text           string
	SourceLanguage string
}

type Normalizer struct {
	translator translate.Translator
	policy     DetectFailurePolicy
	logger     *slog.Logger
}

// New builds a Normalizer. A nil translator disables translation and every
// input is treated as already being in the main language.
func New(translator translate.Translator, policy DetectFailurePolicy, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == "" {
		policy = PolicyFallback
	}
	return &Normalizer{
		translator: translator,
		policy:     policy,
		logger:     logger.With("component", "normalize"),
	}
}

// Normalize returns ok=false when there is nothing to match: empty input, or a
// failed detection under PolicyAbort. A translation failure is returned as an
// error.
func (n *Normalizer) Normalize(ctx context.Context, raw, mainLanguage string) (Content, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return Content{}, false, nil
	}
	if n.translator == nil {
		return Content{Text: strings.ToLower(raw), SourceLanguage: mainLanguage}, true, nil
	}

	source, err := n.translator.Detect(ctx, raw)
	if err != nil {
		if n.policy == PolicyAbort {
			n.logger.Error("language detection failed, dropping input", "error", err)
			return Content{}, false, nil
		}
		n.logger.Error("language detection failed, matching original text", "error", err)
		return Content{Text: strings.ToLower(raw)}, true, nil
	}

	if SameLanguage(source, mainLanguage) {
		return Content{Text: strings.ToLower(raw), SourceLanguage: source}, true, nil
	}

	translated, err := n.translator.Translate(ctx, raw, source, mainLanguage)
	if err != nil {
		return Content{}, false, fmt.Errorf("translate %s to %s: %w", source, mainLanguage, err)
	}
	return Content{Text: strings.ToLower(translated), SourceLanguage: source}, true, nil
}

// SameLanguage compares two language codes by their base language, so "en"
// and "en-GB" are the same.
func SameLanguage(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	tagA, errA := language.Parse(a)
	tagB, errB := language.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	baseA, _ := tagA.Base()
	baseB, _ := tagB.Base()
	return baseA == baseB
}
