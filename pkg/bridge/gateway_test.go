package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veridian-labs/voicebridge/pkg/actions"
	"github.com/veridian-labs/voicebridge/pkg/provider"
)

// autoAdapter acknowledges readiness as soon as Connect is called.
type autoAdapter struct {
	*fakeAdapter
}

func (a *autoAdapter) Connect(ctx context.Context) error {
	a.events <- provider.Event{Type: provider.EventConnected}
	return nil
}

type gatewayFixture struct {
	gw  *Gateway
	srv *httptest.Server

	mu       sync.Mutex
	adapters []*autoAdapter
}

func newGatewayFixture(t *testing.T, maxSessions int) *gatewayFixture {
	t.Helper()
	fx := &gatewayFixture{}

	factory := func(cfg provider.Config) provider.Adapter {
		a := &autoAdapter{fakeAdapter: newFakeAdapter()}
		// The gateway probes the factory once with an empty config at
		// construction; only real calls carry the API key.
		if cfg.APIKey != "" {
			fx.mu.Lock()
			fx.adapters = append(fx.adapters, a)
			fx.mu.Unlock()
		}
		return a
	}
	registryFactory := func(caller string) *actions.Registry {
		return actions.NewRegistry()
	}

	fx.gw = New(
		Config{
			Environment:  "production",
			SharedSecret: "s3cret",
			MaxSessions:  maxSessions,
		},
		provider.Config{APIKey: "upstream-key"},
		factory,
		registryFactory,
		nil,
	)
	fx.srv = httptest.NewServer(fx.gw.Routes())
	t.Cleanup(func() {
		fx.gw.Shutdown()
		fx.srv.Close()
	})
	return fx
}

func (fx *gatewayFixture) adapter(t *testing.T, i int) *autoAdapter {
	t.Helper()
	var a *autoAdapter
	waitFor(t, "adapter creation", func() bool {
		fx.mu.Lock()
		defer fx.mu.Unlock()
		if len(fx.adapters) > i {
			a = fx.adapters[i]
			return true
		}
		return false
	})
	return a
}

func (fx *gatewayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(fx.srv.URL, "http") + "/media"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendStart(t *testing.T, conn *websocket.Conn, streamSid string, params map[string]string) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"event": "connected", "protocol": "Call"}); err != nil {
		t.Fatalf("write connected: %v", err)
	}
	err := conn.WriteJSON(map[string]any{
		"event":     "start",
		"streamSid": streamSid,
		"start": map[string]any{
			"streamSid":        streamSid,
			"callSid":          "CA-" + streamSid,
			"customParameters": params,
			"mediaFormat": map[string]any{
				"encoding": "audio/x-mulaw", "sampleRate": 8000, "channels": 1,
			},
		},
	})
	if err != nil {
		t.Fatalf("write start: %v", err)
	}
}

func goodParams() map[string]string {
	return map[string]string{
		"environment": "production",
		"token":       "s3cret",
		"caller":      "+15550100",
	}
}

func expectCloseCode(t *testing.T, conn *websocket.Conn, want int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				t.Fatalf("read error = %v, want close error", err)
			}
			if ce.Code != want {
				t.Fatalf("close code = %d, want %d", ce.Code, want)
			}
			return
		}
	}
}

func TestRejectsBadToken(t *testing.T) {
	fx := newGatewayFixture(t, 2)
	conn := fx.dial(t)
	params := goodParams()
	params["token"] = "wrong"
	sendStart(t, conn, "MZ-1", params)
	expectCloseCode(t, conn, CloseCodeBadToken)
}

func TestRejectsEnvironmentMismatch(t *testing.T) {
	fx := newGatewayFixture(t, 2)
	conn := fx.dial(t)
	params := goodParams()
	params["environment"] = "staging"
	sendStart(t, conn, "MZ-1", params)
	expectCloseCode(t, conn, CloseCodeEnvMismatch)
}

func TestCapacityRejectionConsumesNothing(t *testing.T) {
	fx := newGatewayFixture(t, 1)

	first := fx.dial(t)
	sendStart(t, first, "MZ-first", goodParams())
	waitFor(t, "first session active", func() bool {
		return fx.gw.Status().ActiveSessions == 1
	})

	// At capacity: the next call is refused with the capacity code.
	second := fx.dial(t)
	sendStart(t, second, "MZ-second", goodParams())
	expectCloseCode(t, second, CloseCodeCapacity)

	// The rejection consumed no ticket: once the first call ends, a
	// new one fits.
	first.WriteJSON(map[string]any{"event": "stop", "streamSid": "MZ-first"})
	waitFor(t, "first session gone", func() bool {
		return fx.gw.Status().ActiveSessions == 0
	})

	third := fx.dial(t)
	sendStart(t, third, "MZ-third", goodParams())
	waitFor(t, "third session active", func() bool {
		return fx.gw.Status().ActiveSessions == 1
	})
}

func TestMediaRelay(t *testing.T) {
	fx := newGatewayFixture(t, 2)
	conn := fx.dial(t)
	sendStart(t, conn, "MZ-relay", goodParams())

	adapter := fx.adapter(t, 0)

	// Caller → provider.
	conn.WriteJSON(map[string]any{
		"event":     "media",
		"streamSid": "MZ-relay",
		"media":     map[string]any{"payload": b64([]byte{0xFF, 0x00})},
	})
	waitFor(t, "caller audio forwarded", func() bool {
		return len(adapter.sentAudio()) == 1
	})

	// Provider → caller.
	adapter.events <- provider.Event{Type: provider.EventAudio, Audio: []byte{0x7F, 0x80}}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg carrierMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read media: %v", err)
	}
	if msg.Event != eventMedia || msg.StreamSid != "MZ-relay" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.Media == nil || msg.Media.Payload != b64([]byte{0x7F, 0x80}) {
		t.Errorf("payload = %+v", msg.Media)
	}

	// Interruption flushes carrier playback.
	adapter.events <- provider.Event{Type: provider.EventInterrupted}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read clear: %v", err)
	}
	if msg.Event != eventClear {
		t.Errorf("message event = %q, want clear", msg.Event)
	}
}

func TestStatusEndpoint(t *testing.T) {
	fx := newGatewayFixture(t, 3)

	conn := fx.dial(t)
	sendStart(t, conn, "MZ-status", goodParams())
	waitFor(t, "session active", func() bool {
		return fx.gw.Status().ActiveSessions == 1
	})

	resp, err := http.Get(fx.srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ActiveSessions != 1 || st.MaxSessions != 3 {
		t.Errorf("sessions = %d/%d", st.ActiveSessions, st.MaxSessions)
	}
	if st.ProviderVariant != string(provider.VariantRealtime) {
		t.Errorf("variant = %q", st.ProviderVariant)
	}
	if !st.UpstreamKeySet {
		t.Error("upstream key not reported as set")
	}
	if len(st.Sessions) != 1 || st.Sessions[0].StreamSid != "MZ-status" {
		t.Errorf("session list = %+v", st.Sessions)
	}
	if got := st.Sessions[0].State; got != StateActive.String() {
		t.Errorf("session state = %q", got)
	}
}

func TestUpstreamCloseThenCarrierStop(t *testing.T) {
	fx := newGatewayFixture(t, 2)
	conn := fx.dial(t)
	sendStart(t, conn, "MZ-race", goodParams())

	adapter := fx.adapter(t, 0)
	waitFor(t, "session active", func() bool {
		return fx.gw.Status().ActiveSessions == 1
	})

	// Provider drops first; the late carrier stop must be harmless.
	adapter.Close()
	waitFor(t, "session gone", func() bool {
		return fx.gw.Status().ActiveSessions == 0
	})
	conn.WriteJSON(map[string]any{"event": "stop", "streamSid": "MZ-race"})

	if got := fx.gw.pool.InUse(); got != 0 {
		t.Errorf("tickets in use = %d, want 0", got)
	}
}
