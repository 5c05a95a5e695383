// Package translate provides language detection and translation backends
// used to normalize incoming messages to the main language.
package translate

import (
	"context"
	"errors"
)

var ErrEmptyResult = errors.New("translation service returned an empty result")

type Translator interface {
	// Detect returns the language code of text.
	Detect(ctx context.Context, text string) (string, error)
	// Translate converts text from source into target. source may be empty
	// when the backend should detect it itself.
	Translate(ctx context.Context, text, source, target string) (string, error)
}
