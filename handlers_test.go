package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs h and serves it over HTTP until the test ends.
func startServer(t *testing.T, h *hub) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ticker := newMTicker(h.clock, pingPeriod)
	go h.run(ctx)

	store := newSessionStore(testSecret, false, time.Hour)
	srv := httptest.NewServer(newHandler(h, store, "", ticker))
	t.Cleanup(func() {
		cancel()
		<-h.done
		ticker.stop()
		srv.Close()
	})
	return srv
}

// browser is an HTTP client that keeps its session cookie.
type browser struct {
	t      *testing.T
	url    string
	jar    http.CookieJar
	client *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, url: srv.URL, jar: jar, client: &http.Client{Jar: jar}}
}

func (b *browser) post(body string) (*http.Response, response) {
	b.t.Helper()
	res, err := b.client.Post(b.url+"/action", "application/json", strings.NewReader(body))
	require.NoError(b.t, err)
	defer res.Body.Close()

	var resp response
	if res.StatusCode == http.StatusOK {
		require.NoError(b.t, json.NewDecoder(res.Body).Decode(&resp))
	}
	return res, resp
}

// action posts {"request": name, "data": data} and returns the decoded body.
func (b *browser) action(name, data string) response {
	b.t.Helper()
	body := map[string]any{"request": name}
	if data != "" {
		body["data"] = json.RawMessage(data)
	}
	buf := new(bytes.Buffer)
	require.NoError(b.t, json.NewEncoder(buf).Encode(body))
	res, resp := b.post(buf.String())
	require.Equal(b.t, http.StatusOK, res.StatusCode)
	return resp
}

func (b *browser) dial(channel string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{Jar: b.jar, HandshakeTimeout: time.Second}
	return dialer.Dial("ws"+strings.TrimPrefix(b.url, "http")+"/ws/"+channel, nil)
}

// startGame logs in two browsers and puts them in the same game.
func startGame(t *testing.T, srv *httptest.Server) (*browser, *browser) {
	t.Helper()
	a, b := newBrowser(t, srv), newBrowser(t, srv)
	require.Equal(t, statusOK, a.action("login", `{"username": "a"}`).Status)
	require.Equal(t, statusOK, b.action("login", `{"username": "b"}`).Status)

	created := a.action("createGame", "")
	require.Equal(t, statusOK, created.Status)
	gameID := created.Data.(map[string]any)["gameId"].(string)
	require.Equal(t, statusOK, b.action("joinGame", `{"gameId": "`+gameID+`"}`).Status)
	return a, b
}

func TestLongPollReceivesPushedMessage(t *testing.T) {
	srv := startServer(t, newBuiltinHub(t, clockwork.NewFakeClock()))
	a, b := startGame(t, srv)

	polled := make(chan response, 1)
	go func() {
		polled <- a.action(updateChannel, "")
	}()

	select {
	case resp := <-polled:
		t.Fatal("Expectation: poll is held, Received:", resp)
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, statusOK, b.action("send", `{"action": "move", "x": 1}`).Status)

	select {
	case resp := <-polled:
		assert.Equal(t, statusOK, resp.Status)
		assert.Equal(t, map[string]any{"action": "move", "x": float64(1)}, resp.Data)
	case <-time.After(time.Second):
		t.Fatal("Expectation: pushed message, Received: nothing")
	}

	// b did not poll, so the same message is waiting in its mailbox.
	resp := b.action(updateChannel, "")
	assert.Equal(t, map[string]any{"action": "move", "x": float64(1)}, resp.Data)
}

func TestLongPollTimesOut(t *testing.T) {
	opts := testOptions()
	opts.holdTimeout = 50 * time.Millisecond
	h := newHub(clockwork.NewRealClock(), opts)
	require.NoError(t, registerBuiltins(h))
	srv := startServer(t, h)
	a, b := startGame(t, srv)

	resp := a.action(updateChannel, "")
	assert.Equal(t, statusError, resp.Status)
	assert.Equal(t, "Timed out", resp.Data)

	// Pushes after the timeout wait for the next poll.
	require.Equal(t, statusOK, b.action("send", `"late"`).Status)
	resp = a.action(updateChannel, "")
	assert.Equal(t, statusOK, resp.Status)
	assert.Equal(t, "late", resp.Data)
}

func TestActionErrors(t *testing.T) {
	srv := startServer(t, newBuiltinHub(t, clockwork.NewFakeClock()))
	b := newBrowser(t, srv)

	_, resp := b.post(`{"request": `)
	assert.Equal(t, response{Status: statusError, Data: "Malformed request body"}, resp)

	_, resp = b.post(`{"data": 1}`)
	assert.Equal(t, response{Status: statusError, Data: "Missing request parameter"}, resp)

	resp = b.action("logout", "")
	assert.Equal(t, response{Status: statusError, Data: "You must be logged in!"}, resp)

	resp = b.action("login", "")
	assert.Equal(t, response{Status: statusError, Data: "Missing request data"}, resp)
}

func TestUnhandledRequestsPassThrough(t *testing.T) {
	srv := startServer(t, newBuiltinHub(t, clockwork.NewFakeClock()))
	b := newBrowser(t, srv)

	res, _ := b.post(`{"request": "nosuchaction"}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err := b.client.Get(srv.URL + "/action")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestSessionKeepsClientAcrossRequests(t *testing.T) {
	srv := startServer(t, newBuiltinHub(t, clockwork.NewFakeClock()))
	b := newBrowser(t, srv)

	require.Equal(t, statusOK, b.action("login", `{"username": "monkey"}`).Status)
	assert.Equal(t, "Already logged in.", b.action("login", `{"username": "monkey"}`).Data)

	require.Equal(t, statusOK, b.action("logout", "").Status)
	assert.Equal(t, statusOK, b.action("login", `{"username": "banana"}`).Status)
}

func TestWebsocketReceivesPushedMessages(t *testing.T) {
	srv := startServer(t, newBuiltinHub(t, clockwork.NewFakeClock()))
	a, b := startGame(t, srv)

	ws, _, err := a.dial(updateChannel)
	require.NoError(t, err)
	defer ws.Close()

	for _, x := range []int{1, 2} {
		body, err := json.Marshal(map[string]int{"x": x})
		require.NoError(t, err)
		require.Equal(t, statusOK, b.action("send", string(body)).Status)
	}

	for _, x := range []float64{1, 2} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(time.Second)))
		var resp response
		require.NoError(t, ws.ReadJSON(&resp))
		assert.Equal(t, statusOK, resp.Status)
		assert.Equal(t, map[string]any{"x": x}, resp.Data)
	}
}

func TestWebsocketRejected(t *testing.T) {
	srv := startServer(t, newBuiltinHub(t, clockwork.NewFakeClock()))

	anon := newBrowser(t, srv)
	_, res, err := anon.dial(updateChannel)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	a, _ := startGame(t, srv)
	_, res, err = a.dial("login")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
