package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/shopsphere/internal/cart"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/rs/zerolog"
)

const keepAliveInterval = 15 * time.Second

// CartFeed is the cart as the event stream sees it.
type CartFeed interface {
	Count(ctx context.Context) int
	Subscribe() (<-chan cart.Event, func())
}

// SessionFeed reports sign-ins and sign-outs.
type SessionFeed interface {
	CurrentUser() (*domain.User, bool)
	Subscribe() (<-chan struct{}, func())
}

// EventsHandler streams cart and session changes as server-sent events.
type EventsHandler struct {
	cart      CartFeed
	session   SessionFeed
	keepAlive time.Duration
	log       zerolog.Logger
}

// NewEventsHandler streams changes of c and, when s is non-nil, of s.
func NewEventsHandler(c CartFeed, s SessionFeed, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		cart:      c,
		session:   s,
		keepAlive: keepAliveInterval,
		log:       log.With().Str("component", "events_handler").Logger(),
	}
}

type CartEventDTO struct {
	// Source is "snapshot" for the first event, then "local" or "storage".
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type SessionEventDTO struct {
	SignedIn bool   `json:"signed_in"`
	UserID   int64  `json:"user_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Admin    bool   `json:"admin"`
}

// GET /api/v1/cart/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debug().Err(err).Msg("clear write deadline")
	}

	cartCh, stopCart := h.cart.Subscribe()
	defer stopCart()
	var sessionCh <-chan struct{}
	if h.session != nil {
		ch, stop := h.session.Subscribe()
		defer stop()
		sessionCh = ch
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	send := func(event string, data any) bool {
		b, err := json.Marshal(data)
		if err != nil {
			h.log.Error().Err(err).Str("event", event).Msg("encode event")
			return false
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
			return false
		}
		return rc.Flush() == nil
	}
	sendCart := func(source string) bool {
		return send("cart", CartEventDTO{Source: source, Count: h.cart.Count(ctx)})
	}
	sendSession := func() bool {
		var dto SessionEventDTO
		if u, ok := h.session.CurrentUser(); ok {
			dto = SessionEventDTO{SignedIn: true, UserID: u.UserID, Name: u.Name, Admin: u.Role == domain.RoleAdmin}
		}
		return send("session", dto)
	}

	if !sendCart("snapshot") {
		return
	}
	if h.session != nil && !sendSession() {
		return
	}
	h.log.Debug().Str("request_id", getRequestID(ctx)).Msg("event stream opened")

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()
	for {
		ok := true
		select {
		case <-ctx.Done():
			h.log.Debug().Str("request_id", getRequestID(ctx)).Msg("event stream closed")
			return
		case ev, open := <-cartCh:
			ok = open && sendCart(ev.Source.String())
		case _, open := <-sessionCh:
			ok = open && sendSession()
		case <-ping.C:
			_, err := fmt.Fprint(w, ": ping\n\n")
			ok = err == nil && rc.Flush() == nil
		}
		if !ok {
			return
		}
	}
}
