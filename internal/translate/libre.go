package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type LibreConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Libre talks to a LibreTranslate-compatible HTTP API.
type Libre struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewLibre(cfg LibreConfig) *Libre {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &Libre{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type libreDetection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type libreTranslation struct {
	TranslatedText string `json:"translatedText"`
}

func (l *Libre) Detect(ctx context.Context, text string) (string, error) {
	body := map[string]string{"q": text}
	if l.apiKey != "" {
		body["api_key"] = l.apiKey
	}
	var detections []libreDetection
	if err := l.post(ctx, "/detect", body, &detections); err != nil {
		return "", fmt.Errorf("detect language: %w", err)
	}
	best := libreDetection{}
	for _, detection := range detections {
		if strings.TrimSpace(detection.Language) == "" {
			continue
		}
		if best.Language == "" || detection.Confidence > best.Confidence {
			best = detection
		}
	}
	if best.Language == "" {
		return "", fmt.Errorf("detect language: %w", ErrEmptyResult)
	}
	return strings.ToLower(strings.TrimSpace(best.Language)), nil
}

func (l *Libre) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(source) == "" {
		source = "auto"
	}
	body := map[string]string{
		"q":      text,
		"source": source,
		"target": target,
		"format": "text",
	}
	if l.apiKey != "" {
		body["api_key"] = l.apiKey
	}
	var translation libreTranslation
	if err := l.post(ctx, "/translate", body, &translation); err != nil {
		return "", fmt.Errorf("translate text: %w", err)
	}
	if strings.TrimSpace(translation.TranslatedText) == "" {
		return "", fmt.Errorf("translate text: %w", ErrEmptyResult)
	}
	return translation.TranslatedText, nil
}

func (l *Libre) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fixdesk/0.1")

	res, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("status=%d body=%s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
