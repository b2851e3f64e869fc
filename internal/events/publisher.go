package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/quickbite/orderflow/internal/order"
)

// Publisher emits order lifecycle notifications on a topic exchange so the
// surrounding record-management applications can react without touching the
// ledger.
type Publisher struct {
	ch *amqp.Channel
}

func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", EventsExchange, err)
	}

	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) error {
	ev := OrderCreated{
		EventType:    "OrderCreated",
		OrderID:      o.ID,
		CustomerID:   o.CustomerID,
		RestaurantID: o.RestaurantID,
		OrderType:    string(o.Type),
		TotalAmount:  o.TotalAmount,
		Timestamp:    time.Now().UTC(),
	}
	for _, ln := range o.Lines {
		ev.Lines = append(ev.Lines, OrderLine{
			MenuItemID: ln.MenuItemID,
			ItemName:   ln.ItemName,
			UnitPrice:  ln.UnitPrice,
			Quantity:   ln.Quantity,
		})
	}
	return p.publish(ctx, OrderCreatedRoutingKey, ev)
}

func (p *Publisher) StatusChanged(ctx context.Context, orderID string, from, to order.Status) error {
	return p.publish(ctx, StatusChangedRoutingKey, StatusChanged{
		EventType: "OrderStatusChanged",
		OrderID:   orderID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) PaymentReceived(ctx context.Context, orderID, paymentID string, amount float64) error {
	return p.publish(ctx, PaymentReceivedRoutingKey, PaymentReceived{
		EventType: "PaymentReceived",
		OrderID:   orderID,
		PaymentID: paymentID,
		Amount:    amount,
		Timestamp: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, routingKey string, ev any) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
