package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"ws-class-server/pkg/config"
	"ws-class-server/pkg/db"
	"ws-class-server/pkg/logger"
	"ws-class-server/pkg/sfu"
	"ws-class-server/pkg/types"
	"ws-class-server/pkg/whiteboard"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	conf := config.DefaultConfig
	conf.RTC.PortRangeStart = 0
	conf.RTC.PortRangeEnd = 0
	engine, err := sfu.NewEngine(conf.RTC, nil, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(engine.Shutdown)

	s := New(&conf, Components{
		Directory: db.NewStaticDirectory(),
		Boards:    whiteboard.NewMemoryStore(),
		Engine:    engine,
	}, logger.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.hub.Close)
	return s, ts
}

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthCheck(t *testing.T) {
	_, ts := newTestServer(t)
	code, body := get(t, ts.URL+"/healthz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OK", body)
}

func TestSignalingOverWebsocket(t *testing.T) {
	s, ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	request := func(event string) types.Event {
		require.NoError(t, conn.WriteJSON(types.Event{Event: event}))
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var reply types.Event
		require.NoError(t, conn.ReadJSON(&reply))
		return reply
	}

	reply := request("get-capabilities")
	require.Equal(t, "receive-capabilities", reply.Event)
	var caps types.RtpCapabilities
	require.NoError(t, json.Unmarshal(reply.Data, &caps))
	require.Len(t, caps.Codecs, 2)

	reply = request("get-active-classes")
	require.Equal(t, "live-classes", reply.Event)
	require.JSONEq(t, `[]`, string(reply.Data))

	reply = request("no-such-event")
	require.Equal(t, "signaling-error", reply.Event)

	require.Equal(t, 1, s.hub.Count())
	_, body := get(t, ts.URL+"/metrics")
	require.Contains(t, body, "class_signaling_connections 1")
	require.Contains(t, body, `class_signaling_events_total{event="get-capabilities"} 1`)
	require.Contains(t, body, `class_signaling_errors_total{code="bad_request"} 1`)
}

func TestRunStopsOnCancel(t *testing.T) {
	conf := config.DefaultConfig
	conf.BindAddress = "127.0.0.1"
	conf.Port = 0
	s := New(&conf, Components{
		Directory: db.NewStaticDirectory(),
		Boards:    whiteboard.NewMemoryStore(),
	}, logger.Nop())

	closed := false
	s.closers = append(s.closers, func() { closed = true })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	require.True(t, closed)
}

func TestICEServers(t *testing.T) {
	conf := config.DefaultConfig
	servers := iceServers(&conf)
	require.Len(t, servers, 1)
	require.Equal(t, conf.RTC.STUNServers, servers[0].URLs)

	conf.RTC.STUNServers = nil
	require.Nil(t, iceServers(&conf))
}
