package main

import (
	"context"
	"encoding/json"
)

const (
	statusOK    = "OK"
	statusError = "error"

	anonymousUsername = "anonymous"
)

// response is the body of every dispatched action.
type response struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

type reply struct {
	response
	passthrough bool
}

// request is one inbound action call. It is created by the HTTP goroutine
// and from then on only touched by the hub until its reply is sent.
type request struct {
	ctx    context.Context
	method string
	action string
	data   json.RawMessage

	session  *session
	client   *client
	loggedIn bool
	username string

	reply       chan reply
	result      reply
	done        bool
	held        bool
	dispatching bool
}

func newRequest(ctx context.Context, method, action string, data json.RawMessage, sess *session) *request {
	return &request{
		ctx:      ctx,
		method:   method,
		action:   action,
		data:     data,
		session:  sess,
		username: anonymousUsername,
		reply:    make(chan reply, 1),
	}
}

func (r *request) ok(data any) {
	r.end(reply{response: response{Status: statusOK, Data: data}})
}

func (r *request) fail(data any) {
	switch err := data.(type) {
	case *hubError:
		data = err.Message
	case error:
		data = err.Error()
	}
	r.end(reply{response: response{Status: statusError, Data: data}})
}

func (r *request) passthrough() {
	r.end(reply{passthrough: true})
}

// end completes the request once. While the dispatcher is still running
// the handler the reply is kept back until dispatch returns.
func (r *request) end(rep reply) {
	if r.done {
		return
	}
	r.done = true
	r.result = rep
	if !r.dispatching {
		r.reply <- rep
	}
}

func (r *request) resume(payload any) {
	r.ok(payload)
}

func (r *request) expire(reason string) {
	r.fail(reason)
}

func (r *request) clientID() string {
	if r.client == nil {
		return ""
	}
	return r.client.id
}

// decode unmarshals the request data into v.
func (r *request) decode(v any) error {
	if len(r.data) == 0 {
		return protocolError("Missing request data")
	}
	if err := json.Unmarshal(r.data, v); err != nil {
		return protocolError("Malformed request data")
	}
	return nil
}
