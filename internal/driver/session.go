package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const elementPollInterval = 500 * time.Millisecond

// session is a minimal WebDriver (JSON wire protocol) client over the
// Appium HTTP endpoint. It only implements the primitives the platform
// drivers need: bounded element waits, click and text entry.
type session struct {
	client *http.Client
	base   string
	wait   time.Duration

	mu     sync.Mutex
	id     string
	closed bool
}

// wireResponse is the JSON wire envelope. Non-zero status means the
// remote end rejected the command.
type wireResponse struct {
	SessionID string          `json:"sessionId"`
	Status    int             `json:"status"`
	Value     json.RawMessage `json:"value"`
}

// newSession creates a remote session with the given desired
// capabilities.
func newSession(ctx context.Context, client *http.Client, serverURL string, capabilities map[string]any, wait time.Duration) (*session, error) {
	s := &session{
		client: client,
		base:   strings.TrimSuffix(serverURL, "/"),
		wait:   wait,
	}
	var resp wireResponse
	body := map[string]any{"desiredCapabilities": capabilities}
	if err := s.do(ctx, http.MethodPost, s.base+"/session", body, &resp); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("create session: server returned no session id")
	}
	s.id = resp.SessionID
	return s, nil
}

func (s *session) sessionURL(parts ...string) string {
	return s.base + "/session/" + s.id + "/" + strings.Join(parts, "/")
}

func (s *session) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("command failed: http %d", resp.StatusCode)
	}
	var envelope wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Status != 0 {
		return fmt.Errorf("command failed: wire status %d", envelope.Status)
	}
	if out != nil {
		if typed, ok := out.(*wireResponse); ok {
			*typed = envelope
		} else if len(envelope.Value) > 0 {
			if err := json.Unmarshal(envelope.Value, out); err != nil {
				return fmt.Errorf("decode response value: %w", err)
			}
		}
	}
	return nil
}

// findElement asks the remote end for one element by id selector and
// returns the element handle.
func (s *session) findElement(ctx context.Context, selector string) (string, error) {
	var value struct {
		Element string `json:"ELEMENT"`
	}
	body := map[string]string{"using": "id", "value": selector}
	if err := s.do(ctx, http.MethodPost, s.sessionURL("element"), body, &value); err != nil {
		return "", err
	}
	if value.Element == "" {
		return "", fmt.Errorf("element not found: %s", selector)
	}
	return value.Element, nil
}

// waitForElement polls for the element until the session wait timeout
// expires. Expiry is a normal failure, never an unbounded block.
func (s *session) waitForElement(ctx context.Context, selector string) (string, error) {
	deadline := time.Now().Add(s.wait)
	for {
		element, err := s.findElement(ctx, selector)
		if err == nil {
			return element, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("element not found within %s: %s", s.wait, selector)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(elementPollInterval):
		}
	}
}

// click waits for the element and taps it.
func (s *session) click(ctx context.Context, selector string) error {
	element, err := s.waitForElement(ctx, selector)
	if err != nil {
		return err
	}
	if err := s.do(ctx, http.MethodPost, s.sessionURL("element", element, "click"), map[string]any{}, nil); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// typeText waits for the element, clears it and sends the text.
func (s *session) typeText(ctx context.Context, selector, text string) error {
	element, err := s.waitForElement(ctx, selector)
	if err != nil {
		return err
	}
	if err := s.do(ctx, http.MethodPost, s.sessionURL("element", element, "clear"), map[string]any{}, nil); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	body := map[string]any{"value": []string{text}}
	if err := s.do(ctx, http.MethodPost, s.sessionURL("element", element, "value"), body, nil); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// close tears down the remote session. Idempotent and safe on a session
// that never initialized.
func (s *session) close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.id == "" {
		return nil
	}
	s.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.do(ctx, http.MethodDelete, s.base+"/session/"+s.id, nil, nil); err != nil {
		return fmt.Errorf("quit session: %w", err)
	}
	return nil
}
