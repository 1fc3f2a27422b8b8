package main

// handlerFunc runs on the hub goroutine. It must answer req, hold it, or
// leave it to the dispatcher to report that nothing happened.
type handlerFunc func(h *hub, req *request)

// groupPredicate decides whether a requester may listen on a channel.
type groupPredicate func(h *hub, req *request) bool

type action struct {
	name      string
	user      handlerFunc
	anonymous handlerFunc

	// Set for channels only.
	channel bool
	member  groupPredicate
}

// actions and channels share one namespace.
type actions map[string]*action

var (
	errLoginRequired = protocolError("You must be logged in!")
	errNotInGame     = protocolError("You are not in a game.")
)

// registerAction adds a named action. Either handler may be nil. It must
// be called before run.
func (h *hub) registerAction(name string, user, anonymous handlerFunc) error {
	return h.actions.add(&action{name: name, user: user, anonymous: anonymous})
}

// registerChannel adds an action that holds the caller until a message
// is pushed to name. member may be nil to let every logged in client
// listen.
func (h *hub) registerChannel(name string, member groupPredicate) error {
	a := &action{
		name:    name,
		channel: true,
		member:  member,
		user: func(h *hub, req *request) {
			if member != nil && !member(h, req) {
				req.fail(errNotInGame)
				return
			}
			req.held = true
			h.hold(req.clientID(), name, req)
		},
		anonymous: func(h *hub, req *request) {
			req.fail(errLoginRequired)
		},
	}
	return h.actions.add(a)
}

func (a actions) add(act *action) error {
	if act.name == "" {
		return configurationError("action name must not be empty")
	}
	if existing, ok := a[act.name]; ok {
		kind := "action"
		if existing.channel {
			kind = "channel"
		}
		return configurationError("cannot override existing %s %q", kind, act.name)
	}
	a[act.name] = act
	return nil
}
