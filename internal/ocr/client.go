// Package ocr is the client for the text extraction sidecar that turns
// screenshots into text.
package ocr

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

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type extractRequest struct {
	ImageURL  string `json:"image_url"`
	Languages string `json:"languages,omitempty"`
}

type extractResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Extract asks the sidecar to recognize the text in the image at imageURL.
// languages uses tesseract notation, e.g. "eng+fra".
func (c *Client) Extract(ctx context.Context, imageURL, languages string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("ocr service is not configured")
	}
	payload, err := json.Marshal(extractRequest{
		ImageURL:  strings.TrimSpace(imageURL),
		Languages: strings.TrimSpace(languages),
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fixdesk/0.1")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return "", fmt.Errorf("ocr extract failed: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	var decoded extractResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode ocr response: %w", err)
	}
	if strings.TrimSpace(decoded.Error) != "" {
		return "", fmt.Errorf("ocr extract failed: %s", strings.TrimSpace(decoded.Error))
	}
	return decoded.Text, nil
}
