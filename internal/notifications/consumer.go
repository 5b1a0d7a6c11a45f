package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/avalencia/storefront-backend/pkg/db/models"
	"github.com/avalencia/storefront-backend/pkg/enums"
	"github.com/avalencia/storefront-backend/pkg/logger"
	"github.com/avalencia/storefront-backend/pkg/outbox"
	"github.com/avalencia/storefront-backend/pkg/outbox/idempotency"
	"github.com/avalencia/storefront-backend/pkg/outbox/payloads"
)

const orderNotificationConsumer = "order-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches published order events and turns them into user
// notifications.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds an order notification consumer.
func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	kind, ok := notificationKindFor(eventType)
	if !ok {
		c.logg.Info(logCtx, "skipping non-order event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, orderNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	notification, err := buildNotification(kind, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	if err := c.repo.Create(ctx, notification); err != nil {
		c.logg.Error(logCtx, "failed to store notification", err)
		_ = c.idempotency.Delete(ctx, orderNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(logCtx, "user_id", notification.UserID.String()), "notification stored")
	return processResult{ack: true}
}

func notificationKindFor(eventType string) (enums.NotificationKind, bool) {
	switch eventType {
	case string(enums.EventOrderCreated):
		return enums.NotificationOrderCreated, true
	case string(enums.EventOrderStatusChanged):
		return enums.NotificationOrderStatusChanged, true
	case string(enums.EventOrderCanceled):
		return enums.NotificationOrderCanceled, true
	default:
		return "", false
	}
}

func buildNotification(kind enums.NotificationKind, data json.RawMessage) (*models.Notification, error) {
	switch kind {
	case enums.NotificationOrderCreated:
		var payload payloads.OrderCreatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		orderID := payload.OrderID
		return &models.Notification{
			UserID:  payload.UserID,
			Kind:    kind,
			OrderID: &orderID,
			Message: fmt.Sprintf("Your order was placed. Total: $%d.%02d", payload.TotalCents/100, payload.TotalCents%100),
		}, nil
	case enums.NotificationOrderStatusChanged:
		var payload payloads.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		orderID := payload.OrderID
		return &models.Notification{
			UserID:  payload.UserID,
			Kind:    kind,
			OrderID: &orderID,
			Message: fmt.Sprintf("Your order is now %s", payload.NewState),
		}, nil
	case enums.NotificationOrderCanceled:
		var payload payloads.OrderCanceledEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		orderID := payload.OrderID
		return &models.Notification{
			UserID:  payload.UserID,
			Kind:    kind,
			OrderID: &orderID,
			Message: "Your order was cancelled",
		}, nil
	default:
		return nil, fmt.Errorf("unsupported notification kind %q", kind)
	}
}
