// Package middleware wraps the dispatch pipeline with cross-cutting concerns:
// rate limiting, delivery deduplication and logging. It also provides HTTP
// middleware for the operational server.
package middleware

import (
	"context"

	"github.com/relaygate/relay-bot/internal/command"
)

// Delivery is one inbound update on its way to the dispatcher.
type Delivery struct {
	// UpdateID is the transport's delivery identifier; zero when unknown.
	UpdateID int
	Request  *command.Request
}

// Handler processes a delivery and produces the outbound response.
type Handler func(ctx context.Context, d *Delivery) (*command.Response, error)

// Middleware decorates a Handler.
type Middleware func(Handler) Handler

// Chain applies middlewares so the first listed runs outermost.
func Chain(h Handler, mws ...Middleware) Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}

	return h
}
