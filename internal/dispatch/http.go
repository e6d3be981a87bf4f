package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type httpDispatcher struct {
	endpoint string
	client   *http.Client
}

type generateAudioRequest struct {
	Text   string `json:"text"`
	UserID string `json:"userId"`
}

type generateAudioResponse struct {
	AudioURL string `json:"audioUrl"`
}

// NewHTTPDispatcher posts text to the generate-audio endpoint. The timeout
// bounds the whole outbound call so a slow speech service never stalls frame
// processing indefinitely.
func NewHTTPDispatcher(endpoint string, timeout time.Duration) Dispatcher {
	return &httpDispatcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *httpDispatcher) Send(ctx context.Context, text, userID string) (string, error) {
	payload := generateAudioRequest{Text: text, UserID: userID}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &Error{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("speech service returned %s", resp.Status)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	var parsed generateAudioResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.AudioURL == "" {
		return "", &Error{StatusCode: resp.StatusCode, Err: errors.New("response missing audioUrl")}
	}
	return parsed.AudioURL, nil
}
