package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type apiError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("discord %s %s failed: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

// doJSON sends body as JSON to the REST API and decodes the response into out
// when out is non-nil. Non-2xx responses return an *apiError.
func (c *Connector) doJSON(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return res.StatusCode, &apiError{
			Method: method,
			Path:   redactInteractionToken(path),
			Status: res.StatusCode,
			Body:   strings.TrimSpace(string(bodyBytes)),
		}
	}
	if out != nil && res.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return res.StatusCode, fmt.Errorf("decode discord response: %w", err)
		}
	}
	return res.StatusCode, nil
}

func redactInteractionToken(path string) string {
	if !strings.HasPrefix(path, "/interactions/") {
		return path
	}
	parts := strings.Split(path, "/")
	if len(parts) >= 4 {
		parts[3] = "***"
	}
	return strings.Join(parts, "/")
}
