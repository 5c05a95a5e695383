package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/text/language"
)

const (
	detectSystemPrompt    = "Identify the language of the user's message. Reply with the ISO 639-1 code only, lowercase, no punctuation."
	translateSystemPrompt = "Translate the user's message into the language with code %q. Reply with the translation only. Keep product names, error codes and URLs unchanged."
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI detects and translates with a chat completion model.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (o *OpenAI) Detect(ctx context.Context, text string) (string, error) {
	reply, err := o.complete(ctx, detectSystemPrompt, text)
	if err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	code := parseLanguageReply(reply)
	if code == "" {
		return "", fmt.Errorf("detect language: unrecognized reply %q", reply)
	}
	return code, nil
}

func (o *OpenAI) Translate(ctx context.Context, text, source, target string) (string, error) {
	reply, err := o.complete(ctx, fmt.Sprintf(translateSystemPrompt, target), text)
	if err != nil {
		return "", fmt.Errorf("translate text: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("translate text: %w", ErrEmptyResult)
	}
	return strings.TrimSpace(reply), nil
}

func (o *OpenAI) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResult
	}
	return resp.Choices[0].Message.Content, nil
}

func parseLanguageReply(reply string) string {
	fields := strings.Fields(strings.ToLower(reply))
	if len(fields) == 0 {
		return ""
	}
	candidate := strings.Trim(fields[0], "`'\".,:;")
	tag, err := language.Parse(candidate)
	if err != nil || tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
