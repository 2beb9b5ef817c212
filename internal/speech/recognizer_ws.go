package speech

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSRecognizer es un reconocedor continuo sobre WebSocket: frames binarios de
// audio hacia el servicio, mensajes JSON {text, is_final, error} de vuelta.
// Un 409 en el handshake significa que ya hay una sesión abierta.
type WSRecognizer struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
}

func NewWSRecognizer(url, apiKey string) *WSRecognizer {
	header := http.Header{}
	if apiKey != "" {
		header.Set("Authorization", "Bearer "+apiKey)
	}
	return &WSRecognizer{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
	}
}

type recognizerEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
	Error   string `json:"error,omitempty"`
}

type recognizerControl struct {
	Type string `json:"type"`
}

func (r *WSRecognizer) Start(ctx context.Context, onPartial func(text string)) (Recognition, error) {
	conn, resp, err := r.dialer.DialContext(ctx, r.url, r.header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, ErrRecognizerBusy
		}
		if resp != nil {
			return nil, fmt.Errorf("dial recognizer: status=%d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}

	s := &wsRecognition{
		conn:      conn,
		onPartial: onPartial,
		final:     make(chan string, 1),
		done:      make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type wsRecognition struct {
	conn      *websocket.Conn
	onPartial func(string)

	writeMu sync.Mutex
	final   chan string
	done    chan struct{}

	mu      sync.Mutex
	readErr error
	closed  bool
}

func (s *wsRecognition) readLoop() {
	defer close(s.done)
	for {
		var ev recognizerEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
		if ev.Error != "" {
			s.mu.Lock()
			s.readErr = errors.New(ev.Error)
			s.mu.Unlock()
			return
		}
		if ev.IsFinal {
			select {
			case s.final <- strings.TrimSpace(ev.Text):
			default:
			}
			return
		}
		if s.onPartial != nil {
			s.onPartial(ev.Text)
		}
	}
}

func (s *wsRecognition) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// Finish pide el resultado final y lo espera.
func (s *wsRecognition) Finish(ctx context.Context) (string, error) {
	s.writeMu.Lock()
	err := s.conn.WriteJSON(recognizerControl{Type: "finalize"})
	s.writeMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("send finalize: %w", err)
	}

	select {
	case text := <-s.final:
		return text, nil
	case <-s.done:
		select {
		case text := <-s.final:
			return text, nil
		default:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.readErr != nil {
			return "", s.readErr
		}
		return "", errors.New("recognizer closed without final result")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *wsRecognition) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}
