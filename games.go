package main

import (
	"log/slog"
	"slices"
	"strings"
)

// updateChannel is the default channel game members sync through.
const updateChannel = "update"

// game groups clients. It means nothing more to the hub.
type game struct {
	id      string
	members []string
}

type games map[string]*game

func (g games) create() *game {
	gm := &game{id: generateUniqueID(func(id string) bool {
		_, ok := g[id]
		return ok
	})}
	g[gm.id] = gm
	incr("games", 1)
	return gm
}

func (g games) get(id string) (*game, bool) {
	gm, ok := g[id]
	return gm, ok
}

func (gm *game) has(clientID string) bool {
	return slices.Contains(gm.members, clientID)
}

func (gm *game) join(clientID string) {
	if !gm.has(clientID) {
		gm.members = append(gm.members, clientID)
	}
}

// leave removes clientID and deletes the game once it is empty.
func (g games) leave(gameID, clientID string) {
	gm, ok := g[gameID]
	if !ok {
		return
	}
	gm.members = slices.DeleteFunc(gm.members, func(id string) bool { return id == clientID })
	if len(gm.members) == 0 {
		delete(g, gameID)
		decr("games", 1)
	}
}

// currentGame returns the game stored in the requester's session if the
// requester is still one of its members.
func (h *hub) currentGame(req *request) (*game, bool) {
	id, ok := req.session.getString(sessionGameID)
	if !ok {
		return nil, false
	}
	gm, ok := h.games.get(id)
	if !ok || !gm.has(req.clientID()) {
		return nil, false
	}
	return gm, true
}

func hasActiveGame(h *hub, req *request) bool {
	_, ok := h.currentGame(req)
	return ok
}

// registerBuiltins installs the login, game and update actions.
func registerBuiltins(h *hub) error {
	for _, a := range []struct {
		name            string
		user, anonymous handlerFunc
	}{
		{"login", alreadyLoggedIn, login},
		{"logout", logout, nil},
		{"createGame", createGame, nil},
		{"joinGame", joinGame, nil},
		{"leaveGame", leaveGame, nil},
		{"send", send, nil},
	} {
		if err := h.registerAction(a.name, a.user, a.anonymous); err != nil {
			return err
		}
	}
	if err := h.registerChannel(updateChannel, hasActiveGame); err != nil {
		return err
	}
	return h.events.bind(eventClientRemove, func(h *hub, data any) {
		clientID, _ := data.(string)
		for id, gm := range h.games {
			if gm.has(clientID) {
				h.games.leave(id, clientID)
			}
		}
	})
}

func login(h *hub, req *request) {
	var in struct {
		Username string `json:"username"`
	}
	if err := req.decode(&in); err != nil {
		req.fail(err)
		return
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		req.fail("Missing username.")
		return
	}
	if err := req.session.set(sessionAuth, true); err != nil {
		req.fail(err)
		return
	}
	if err := req.session.set(sessionUsername, username); err != nil {
		req.session.delete(sessionAuth)
		req.fail(err)
		return
	}
	slog.InfoContext(req.ctx, "Client logged in", "client", req.clientID(), "username", username)
	req.ok(map[string]string{"username": username})
}

func alreadyLoggedIn(h *hub, req *request) {
	req.fail("Already logged in.")
}

func logout(h *hub, req *request) {
	if gm, ok := h.currentGame(req); ok {
		h.games.leave(gm.id, req.clientID())
	}
	req.session.delete(sessionGameID)
	req.session.delete(sessionAuth)
	req.session.delete(sessionUsername)
	req.ok(nil)
}

func createGame(h *hub, req *request) {
	if gm, ok := h.currentGame(req); ok {
		h.games.leave(gm.id, req.clientID())
	}
	gm := h.games.create()
	gm.join(req.clientID())
	if err := req.session.set(sessionGameID, gm.id); err != nil {
		h.games.leave(gm.id, req.clientID())
		req.fail(err)
		return
	}
	req.ok(map[string]any{"gameId": gm.id})
}

func joinGame(h *hub, req *request) {
	var in struct {
		GameID string `json:"gameId"`
	}
	if err := req.decode(&in); err != nil {
		req.fail(err)
		return
	}
	gm, ok := h.games.get(in.GameID)
	if !ok {
		req.fail("Game does not exist.")
		return
	}
	if current, ok := h.currentGame(req); ok && current.id != gm.id {
		h.games.leave(current.id, req.clientID())
	}
	if err := req.session.set(sessionGameID, gm.id); err != nil {
		req.fail(err)
		return
	}
	gm.join(req.clientID())
	req.ok(map[string]any{"gameId": gm.id, "members": slices.Clone(gm.members)})
}

func leaveGame(h *hub, req *request) {
	gm, ok := h.currentGame(req)
	if !ok {
		req.fail(errNotInGame)
		return
	}
	h.games.leave(gm.id, req.clientID())
	req.session.delete(sessionGameID)
	req.ok(nil)
}

// send pushes the request data to every member of the caller's game,
// the caller included, on the update channel.
func send(h *hub, req *request) {
	gm, ok := h.currentGame(req)
	if !ok {
		req.fail(errNotInGame)
		return
	}
	if err := h.push(slices.Clone(gm.members), updateChannel, req.data); err != nil {
		req.fail(err)
		return
	}
	req.ok(nil)
}
