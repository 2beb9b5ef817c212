package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGoogleTTSURL  = "https://texttospeech.googleapis.com/v1/text:synthesize"
	DefaultGoogleVoice   = "en-US-Wavenet-F"
	DefaultSpeakingRate  = 0.95
	googleProvider       = "google"
	googleLanguageCode   = "en-US"
	googleAudioEncoding  = "MP3"
	maxErrorBodyForError = 512
)

// GoogleSynthesizer llama a Cloud Text-to-Speech y devuelve MP3.
type GoogleSynthesizer struct {
	endpoint string
	apiKey   string
	voice    string
	rate     float64
	client   *http.Client
}

func NewGoogleSynthesizer(endpoint, apiKey, voice string, timeout time.Duration) *GoogleSynthesizer {
	if endpoint == "" {
		endpoint = DefaultGoogleTTSURL
	}
	if voice == "" {
		voice = DefaultGoogleVoice
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GoogleSynthesizer{
		endpoint: endpoint,
		apiKey:   apiKey,
		voice:    voice,
		rate:     DefaultSpeakingRate,
		client:   &http.Client{Timeout: timeout},
	}
}

type googleSynthesisRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string  `json:"audioEncoding"`
		SpeakingRate  float64 `json:"speakingRate"`
	} `json:"audioConfig"`
}

type googleSynthesisResponse struct {
	AudioContent string `json:"audioContent"`
	Error        *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Synthesize devuelve audio MP3, o nil sin error si el servicio no trae audio.
func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if g == nil || g.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	var reqBody googleSynthesisRequest
	reqBody.Input.Text = text
	reqBody.Voice.LanguageCode = googleLanguageCode
	reqBody.Voice.Name = g.voice
	reqBody.AudioConfig.AudioEncoding = googleAudioEncoding
	reqBody.AudioConfig.SpeakingRate = g.rate

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := g.endpoint
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	endpoint += sep + "key=" + url.QueryEscape(g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var sr googleSynthesisResponse
	_ = json.Unmarshal(respBody, &sr)

	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(respBody))
		if sr.Error != nil && sr.Error.Message != "" {
			msg = sr.Error.Message
		}
		if len(msg) > maxErrorBodyForError {
			msg = msg[:maxErrorBodyForError]
		}
		return nil, &APIError{Provider: googleProvider, StatusCode: resp.StatusCode, Message: msg}
	}

	if sr.AudioContent == "" {
		return nil, nil
	}
	audio, err := base64.StdEncoding.DecodeString(sr.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	return audio, nil
}
