package push

import (
	"context"
	"errors"
	"log"

	"github.com/duetapp/duet-server/internal/database"
)

// Dispatcher sends a best-effort notification to every registered push
// endpoint of a user. It keeps no state of its own; subscriptions live in the
// external store. Delivery failures never propagate to the caller: a missed
// notification must not fail the enclosing relay or call operation.
type Dispatcher struct {
	log    *log.Logger
	db     database.Repository
	sender Sender
}

func NewDispatcher(logger *log.Logger, db database.Repository, sender Sender) *Dispatcher {
	return &Dispatcher{
		log:    logger,
		db:     db,
		sender: sender,
	}
}

// Notify attempts one delivery per subscription. Endpoints the vendor reports
// as permanently gone are deleted; any other failure is logged and ignored.
func (d *Dispatcher) Notify(ctx context.Context, userId string, payload Payload) {
	subs, err := d.db.ListSubscriptions(userId)
	if err != nil {
		d.log.Printf("push: list subscriptions for %q: %v", userId, err)
		return
	}

	for _, sub := range subs {
		err := d.sender.Send(ctx, sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrSubscriptionGone):
			if err := d.db.DeleteSubscriptionByEndpoint(sub.Endpoint); err != nil {
				d.log.Printf("push: prune subscription %d: %v", sub.Id, err)
			} else {
				d.log.Printf("push: pruned dead subscription %d for %q", sub.Id, userId)
			}
		default:
			d.log.Printf("push: deliver to %q: %v", userId, err)
		}
	}
}
