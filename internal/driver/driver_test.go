package driver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcron/internal/core"
)

// fakeAppium is an in-process stand-in for the automation backend. It
// speaks just enough of the JSON wire protocol for the platform drivers:
// session lifecycle, element lookup by id, click, clear and send-keys.
type fakeAppium struct {
	server      *httptest.Server
	failSession bool

	mu       sync.Mutex
	present  map[string]bool
	actions  []string
	sessions int
	caps     map[string]any
}

func newFakeAppium(t *testing.T, present ...string) *fakeAppium {
	t.Helper()
	f := &fakeAppium{present: make(map[string]bool)}
	for _, selector := range present {
		f.present[selector] = true
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAppium) record(action string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
}

func (f *fakeAppium) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.actions...)
}

func (f *fakeAppium) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *fakeAppium) capability(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.caps[key]
}

func writeWire(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"sessionId": "sess-1",
		"status":    status,
		"value":     value,
	})
}

func (f *fakeAppium) handle(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "session":
		if f.failSession {
			http.Error(w, "backend down", http.StatusInternalServerError)
			return
		}
		var body struct {
			DesiredCapabilities map[string]any `json:"desiredCapabilities"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.sessions++
		f.caps = body.DesiredCapabilities
		f.mu.Unlock()
		writeWire(w, 0, map[string]any{})

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "session":
		f.record("quit")
		writeWire(w, 0, nil)

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "element":
		var body struct {
			Using string `json:"using"`
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		found := f.present[body.Value]
		f.mu.Unlock()
		if !found {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"status": 7, "value": nil})
			return
		}
		writeWire(w, 0, map[string]string{"ELEMENT": "el:" + body.Value})

	case r.Method == http.MethodPost && len(parts) == 5 && parts[2] == "element":
		element, op := parts[3], parts[4]
		switch op {
		case "click":
			f.record("click " + element)
		case "clear":
			f.record("clear " + element)
		case "value":
			var body struct {
				Value []string `json:"value"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.record("type " + element + " " + strings.Join(body.Value, ""))
		default:
			http.NotFound(w, r)
			return
		}
		writeWire(w, 0, nil)

	default:
		http.NotFound(w, r)
	}
}

func testFactory(backend *fakeAppium, wait time.Duration) *Factory {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewFactory(Config{
		ServerURL:   backend.server.URL,
		DeviceName:  "test-device",
		WaitTimeout: wait,
	}, logger)
}

func TestCreateSetsPlatformCapabilities(t *testing.T) {
	backend := newFakeAppium(t)
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)
	defer drv.Close()

	assert.Equal(t, 1, backend.sessionCount())
	assert.Equal(t, "com.reddit.frontpage", backend.capability("appPackage"))
	assert.Equal(t, "UiAutomator2", backend.capability("automationName"))
	assert.Equal(t, "test-device", backend.capability("deviceName"))
}

func TestCreateUnknownPlatform(t *testing.T) {
	backend := newFakeAppium(t)
	factory := testFactory(backend, time.Second)

	_, err := factory.Create(context.Background(), core.Platform("facebook"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported platform")
	assert.Equal(t, 0, backend.sessionCount())
}

func TestCreateBackendUnreachable(t *testing.T) {
	backend := newFakeAppium(t)
	backend.failSession = true
	factory := testFactory(backend, time.Second)

	_, err := factory.Create(context.Background(), core.PlatformTwitter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect automation backend")
}

func TestRedditLoginFlow(t *testing.T) {
	backend := newFakeAppium(t, "login_button", "username", "password", "login", "home_feed")
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)
	defer drv.Close()

	err = drv.Login(context.Background(), core.Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	actions := backend.recorded()
	assert.Contains(t, actions, "click el:login_button")
	assert.Contains(t, actions, "type el:username alice")
	assert.Contains(t, actions, "type el:password secret")
	assert.Contains(t, actions, "click el:login")
}

func TestRedditLoginFailsWithoutHomeFeed(t *testing.T) {
	backend := newFakeAppium(t, "login_button", "username", "password", "login")
	factory := testFactory(backend, 50*time.Millisecond)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)
	defer drv.Close()

	err = drv.Login(context.Background(), core.Credentials{Username: "alice", Password: "secret"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "home feed not visible")
}

func TestRedditPostFlow(t *testing.T) {
	backend := newFakeAppium(t,
		"subreddit_search", "search_bar", "search_result",
		"create_post_button", "post_title", "post_text", "post_submit")
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)
	defer drv.Close()

	err = drv.Post(context.Background(), core.Content{
		Title:      "a title",
		Text:       "a body",
		Subreddits: []string{"golang"},
	})
	require.NoError(t, err)

	actions := backend.recorded()
	assert.Contains(t, actions, "type el:search_bar golang")
	assert.Contains(t, actions, "type el:post_title a title")
	assert.Contains(t, actions, "type el:post_text a body")
	assert.Contains(t, actions, "click el:post_submit")
}

func TestRedditPostRequiresSubreddit(t *testing.T) {
	backend := newFakeAppium(t)
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)
	defer drv.Close()

	err = drv.Post(context.Background(), core.Content{Title: "t", Text: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no target subreddit")
}

func TestRedditCommentFlow(t *testing.T) {
	backend := newFakeAppium(t, "post_abc123", "comment_button", "comment_text", "comment_submit")
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)
	defer drv.Close()

	require.NoError(t, drv.Comment(context.Background(), "abc123", "nice post"))

	actions := backend.recorded()
	assert.Contains(t, actions, "click el:post_abc123")
	assert.Contains(t, actions, "type el:comment_text nice post")
	assert.Contains(t, actions, "click el:comment_submit")
}

func TestTwitterPostFlow(t *testing.T) {
	backend := newFakeAppium(t, "compose_tweet", "tweet_text", "tweet_submit")
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformTwitter)
	require.NoError(t, err)
	defer drv.Close()

	err = drv.Post(context.Background(), core.Content{
		Text:     "hello world",
		Hashtags: []string{"golang", "#testing"},
	})
	require.NoError(t, err)

	assert.Contains(t, backend.recorded(), "type el:tweet_text hello world #golang #testing")
}

func TestComposeTweetText(t *testing.T) {
	assert.Equal(t, "plain", composeTweetText(core.Content{Text: "plain"}))
	assert.Equal(t, "x #a #b", composeTweetText(core.Content{Text: "x", Hashtags: []string{"a", "#b"}}))
}

func TestCloseIsIdempotent(t *testing.T) {
	backend := newFakeAppium(t)
	factory := testFactory(backend, time.Second)

	drv, err := factory.Create(context.Background(), core.PlatformReddit)
	require.NoError(t, err)

	require.NoError(t, drv.Close())
	require.NoError(t, drv.Close())

	quits := 0
	for _, action := range backend.recorded() {
		if action == "quit" {
			quits++
		}
	}
	assert.Equal(t, 1, quits)
}
