package main

const (
	eventClientAdd    = "client.add"
	eventClientRemove = "client.remove"
)

type eventHandler func(h *hub, data any)

// events holds at most one handler per event name.
type events map[string]eventHandler

func (e events) bind(name string, fn eventHandler) error {
	if _, ok := e[name]; ok {
		return configurationError("cannot override existing handler for event %q", name)
	}
	e[name] = fn
	return nil
}

func (e events) trigger(h *hub, name string, data any) {
	if fn, ok := e[name]; ok {
		fn(h, data)
	}
}
