package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func testOptions() hubOptions {
	return hubOptions{
		clientTimeout: 10 * time.Minute,
		reapInterval:  time.Hour,
		holdTimeout:   30 * time.Second,
	}
}

func newTestHub(clock clockwork.Clock) *hub {
	return newHub(clock, testOptions())
}

func newTestSession() *session {
	store := sessions.NewCookieStore([]byte(testSecret))
	return newSession(sessions.NewSession(store, sessionName))
}

func loggedInSession(username string) *session {
	sess := newTestSession()
	_ = sess.set(sessionAuth, true)
	_ = sess.set(sessionUsername, username)
	return sess
}

func newTestRequest(action, data string, sess *session) *request {
	var raw json.RawMessage
	if data != "" {
		raw = json.RawMessage(data)
	}
	return newRequest(context.Background(), http.MethodPost, action, raw, sess)
}

// replyOf returns the reply already sent for req, failing if there is none.
func replyOf(t *testing.T, req *request) reply {
	t.Helper()
	select {
	case rep := <-req.reply:
		return rep
	default:
		t.Fatal("Expectation: a reply, Received: none")
		return reply{}
	}
}

func requireNoReply(t *testing.T, req *request) {
	t.Helper()
	select {
	case rep := <-req.reply:
		t.Fatal("Expectation: no reply, Received:", rep)
	default:
	}
}

// decodeData round trips a payload through JSON so raw messages and maps
// compare equal.
func decodeData(t *testing.T, data any) any {
	t.Helper()
	b, err := json.Marshal(data)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

// testListener records what the hub hands it.
type testListener struct {
	payloads []any
	reasons  []string
}

func (l *testListener) resume(payload any) {
	l.payloads = append(l.payloads, payload)
}

func (l *testListener) expire(reason string) {
	l.reasons = append(l.reasons, reason)
}

func (l *testListener) completed() bool {
	return len(l.payloads)+len(l.reasons) > 0
}
