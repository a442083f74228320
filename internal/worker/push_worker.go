package worker

import (
	"context"
	"fmt"

	"github.com/spec-kit/wallet-pass-service/internal/domain"
	"github.com/spec-kit/wallet-pass-service/internal/events"
)

// CustomerChangeHandler reacts to a customer update.
type CustomerChangeHandler interface {
	HandleCustomerChange(ctx context.Context, before, after domain.Customer)
}

// StartPushWorker subscribes handler to customer updates.
func StartPushWorker(dispatcher events.Dispatcher, handler CustomerChangeHandler) {
	if dispatcher == nil || handler == nil {
		return
	}
	dispatcher.Subscribe(events.EventCustomerUpdated, func(ctx context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.CustomerUpdatedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		handler.HandleCustomerChange(ctx, payload.Before, payload.After)
		return nil
	})
}
