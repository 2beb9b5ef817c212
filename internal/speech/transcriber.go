package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTranscriber envía el audio grabado a un endpoint de transcripción:
// POST {audio: base64, format} -> {text}.
type HTTPTranscriber struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPTranscriber(url, apiKey string, timeout time.Duration) *HTTPTranscriber {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTranscriber{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

type transcribeRequest struct {
	Audio  string `json:"audio"`
	Format string `json:"format"`
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	body, err := json.Marshal(transcribeRequest{
		Audio:  base64.StdEncoding.EncodeToString(audio),
		Format: format,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var tr transcribeResponse
	_ = json.Unmarshal(respBody, &tr)
	if resp.StatusCode >= 400 {
		msg := tr.Error
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return "", &APIError{Provider: "transcription", StatusCode: resp.StatusCode, Message: msg}
	}
	if tr.Error != "" {
		return "", fmt.Errorf("transcription error: %s", tr.Error)
	}
	return strings.TrimSpace(tr.Text), nil
}
