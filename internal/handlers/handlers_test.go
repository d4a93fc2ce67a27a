package handlers

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"jtlab/internal/choreo"
	"jtlab/internal/geometry"
	"jtlab/internal/intro"
	"jtlab/pkg/realtime"
)

// lockedLoop serializes posted work and clock advances so the loop can be
// driven from the test while handlers post from server goroutines.
type lockedLoop struct {
	mu *sync.Mutex
	*realtime.ManualLoop
}

func (l lockedLoop) Post(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
}

func (l lockedLoop) advance(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Advance(d)
}

type env struct {
	store  *intro.Store
	router chi.Router
	mu     sync.Mutex
	loops  []lockedLoop
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{}
	e.store = intro.NewStore(intro.Options{
		Runners: func() (intro.Runner, func()) {
			l := lockedLoop{mu: &sync.Mutex{}, ManualLoop: realtime.NewManualLoop(time.Unix(0, 0), 60)}
			e.mu.Lock()
			e.loops = append(e.loops, l)
			e.mu.Unlock()
			return l, func() {}
		},
	})
	logger := log.New(io.Discard)
	r := chi.NewRouter()
	NewHomeHandler(choreo.DefaultConfig(), "https://jtlab.example").RegisterRoutes(r)
	ih := NewIntroHandler(e.store, logger)
	ih.RegisterStream(r)
	ih.RegisterRoutes(r)
	e.router = r
	t.Cleanup(e.store.Close)
	return e
}

func (e *env) loop(i int) lockedLoop {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loops[i]
}

func (e *env) do(method, target, visitor string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if visitor != "" {
		req.AddCookie(&http.Cookie{Name: visitorCookie, Value: visitor})
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHome(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<link rel="canonical" href="https://jtlab.example/">`) {
		t.Error("canonical URL should come from the base URL")
	}
	if !strings.Contains(body, `data-role="moving"`) {
		t.Error("page should mark the moving glyph")
	}
}

func TestStream(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.router)
	defer srv.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}
	resp, err := client.Get(srv.URL + "/intro/stream?w=500&h=900")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type %q", ct)
	}
	u, _ := url.Parse(srv.URL)
	if len(jar.Cookies(u)) == 0 {
		t.Error("stream should set the visitor cookie")
	}

	br := bufio.NewReader(resp.Body)
	events := readEvents(t, br, 2)
	if events[0].name != "session" || events[0].data == "" {
		t.Fatalf("first event %+v, want the session id", events[0])
	}
	if events[1].name != "state" {
		t.Fatalf("second event %+v, want state", events[1])
	}
	var snap choreo.Snapshot
	if err := json.Unmarshal([]byte(events[1].data), &snap); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if snap.Phase != choreo.PhaseIdle || snap.ViewportBucket != geometry.BucketNarrow {
		t.Errorf("first state %s %s, want idle narrow", snap.Phase, snap.ViewportBucket)
	}

	e.loop(0).advance(600 * time.Millisecond)
	next := readEvents(t, br, 1)[0]
	if !strings.Contains(next.data, `"phase":"name_visible"`) {
		t.Errorf("next state %s", next.data)
	}

	resp.Body.Close()
	deadline := time.Now().Add(2 * time.Second)
	for e.store.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if e.store.Len() != 0 {
		t.Error("session not ended after the client disconnected")
	}
}

type sseEvent struct {
	name string
	data string
}

// readEvents reads n server-sent events, skipping comments.
func readEvents(t *testing.T, br *bufio.Reader, n int) []sseEvent {
	t.Helper()
	var out []sseEvent
	var cur sseEvent
	var data []string
	for len(out) < n {
		line, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if cur.name != "" {
				cur.data = strings.Join(data, "\n")
				out = append(out, cur)
			}
			cur, data = sseEvent{}, nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event: "):
			cur.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
	return out
}

func TestSessionRoutes(t *testing.T) {
	e := newEnv(t)
	visitor := uuid.NewString()
	sess, err := e.store.Begin(visitor, geometry.Size{Width: 1280, Height: 800})
	if err != nil {
		t.Fatal(err)
	}
	base := "/intro/" + sess.ID

	rec := e.do(http.MethodGet, base+"/state", visitor, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"phase":"idle"`) {
		t.Errorf("state body %s", rec.Body.String())
	}

	if rec := e.do(http.MethodGet, base+"/state", uuid.NewString(), nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("other visitor got %d, want 404", rec.Code)
	}
	if rec := e.do(http.MethodGet, "/intro/nope/state", visitor, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown session got %d, want 404", rec.Code)
	}

	if rec := e.do(http.MethodPost, base+"/theme", visitor, nil, ""); rec.Code != http.StatusConflict {
		t.Errorf("early toggle got %d, want 409", rec.Code)
	}
	e.loop(0).advance(12 * time.Second)
	if rec := e.do(http.MethodPost, base+"/theme", visitor, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("toggle got %d, want 204", rec.Code)
	}
	if snap, _ := sess.Snapshot(); !snap.ThemeIsDark {
		t.Error("theme not toggled")
	}

	form := "application/x-www-form-urlencoded"
	if rec := e.do(http.MethodPost, base+"/viewport", visitor, strings.NewReader("w=abc&h=1"), form); rec.Code != http.StatusBadRequest {
		t.Errorf("bad viewport got %d, want 400", rec.Code)
	}
	if rec := e.do(http.MethodPost, base+"/viewport", visitor, strings.NewReader("w=600&h=900"), form); rec.Code != http.StatusNoContent {
		t.Errorf("viewport got %d, want 204", rec.Code)
	}
	if snap, _ := sess.Snapshot(); snap.ViewportBucket != geometry.BucketNarrow {
		t.Errorf("bucket %s after resize, want narrow", snap.ViewportBucket)
	}

	jsonType := "application/json"
	if rec := e.do(http.MethodPost, base+"/layout", visitor, strings.NewReader(`{"fontPx":56,"glyphs":[{"left":1,"width":2}]}`), jsonType); rec.Code != http.StatusNoContent {
		t.Errorf("layout got %d, want 204", rec.Code)
	}
	if rec := e.do(http.MethodPost, base+"/layout", visitor, strings.NewReader(`{"glyphs":[]}`), jsonType); rec.Code != http.StatusBadRequest {
		t.Errorf("empty layout got %d, want 400", rec.Code)
	}
	if rec := e.do(http.MethodPost, base+"/layout", visitor, strings.NewReader(`{"glyphs":[{"left":1,"width":2}]}`), jsonType); rec.Code != http.StatusBadRequest {
		t.Errorf("layout without a font size got %d, want 400", rec.Code)
	}

	if rec := e.do(http.MethodPost, base+"/cancel", visitor, nil, ""); rec.Code != http.StatusNoContent {
		t.Errorf("cancel got %d, want 204", rec.Code)
	}
	if e.store.Len() != 0 {
		t.Error("session still live after cancel")
	}
	if rec := e.do(http.MethodGet, base+"/state", visitor, nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("state after cancel got %d, want 404", rec.Code)
	}
}

func TestParseFloat(t *testing.T) {
	cases := map[string]float64{"": 7, "12.5": 12.5, "-3": 7, "x": 7, "1e9": 7}
	for in, want := range cases {
		if got := parseFloat(in, 7); got != want {
			t.Errorf("parseFloat(%q) = %v, want %v", in, got, want)
		}
	}
}
