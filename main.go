// Command pollhub serves named actions over HTTP POST and pushes messages
// to browsers through long-polled channels.
//
//	pollhub -addr=:3000 -session-secret=...
//
// Browsers POST {"request": "<action>", "data": ...} to /action and get
// {"status": "OK"|"error", "data": ...} back, always with HTTP 200. A
// client id is kept in a signed session cookie.
//
// A channel is an action that does not answer right away: the request is
// held until a message is pushed to that client on that channel, or until
// the hold timeout. Messages pushed while nobody listens wait in the
// client's mailbox for the next poll.
//
// A logged in browser may instead open a websocket on /ws/<channel> and
// receive every message for it as a text frame.
//
// Clients that make no request for the client timeout are forgotten along
// with their mailboxes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "pollhub:", err)
		os.Exit(2)
	}
	initLogger(cfg.LogLevel, cfg.LogFormat)

	startMetrics(cfg.MetricsTick)
	defer finalMetrics()

	clock := clockwork.NewRealClock()
	h := newHub(clock, hubOptions{
		clientTimeout: cfg.ClientTimeout,
		reapInterval:  cfg.ReapInterval,
		holdTimeout:   cfg.HoldTimeout,
		maxQueue:      cfg.MaxQueue,
		rateLimit:     cfg.RateLimit,
		rateBurst:     cfg.RateBurst,
	})
	if err := registerBuiltins(h); err != nil {
		slog.Error("Invalid action configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := newMTicker(clock, pingPeriod)
	defer ticker.stop()
	go h.run(ctx)

	store := newSessionStore(cfg.SessionSecret, cfg.SecureCookies, cfg.SessionMaxAge)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(h, store, cfg.Origin, ticker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.StopTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting server", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

func newHandler(h *hub, store sessions.Store, origin string, ticker *mTicker) http.Handler {
	handler := mux.NewRouter()
	handler.Use(correlationMiddleware)

	// Route websocket requests
	handler.Path("/ws/{channel}").HeadersRegexp(
		// Requests with these headers will use this handler
		"Connection", "(?i)upgrade",
		"Upgrade", "(?i)websocket",
	).Handler(newWsHandler(h, store, origin, ticker))

	// Every method reaches the dispatcher, which passes what it does not
	// handle on to the 404 handler.
	handler.Path("/action").Handler(actionHandler{h: h, store: store, next: http.NotFoundHandler()})

	return handler
}
