package ws

import (
	"context"
	"log"

	"github.com/playmatatu/billiards/internal/session"
)

// StartTableEventSubscriber relays table events published by any instance on
// Redis to the clients connected here.
func StartTableEventSubscriber(ctx context.Context, sessions *session.Manager, hub *Hub) {
	sessions.SubscribeEvents(ctx, func(ev session.TableEvent) {
		log.Printf("[WS] event received: type=%s table_id=%s", ev.Type, ev.TableID)
		hub.BroadcastTableEvent(ev)
	})
}
