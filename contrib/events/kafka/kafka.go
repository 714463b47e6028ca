// Package kafka publishes workflow progress events to a Kafka topic so
// downstream dashboards can follow tickets moving through the stages.
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/sweetpotato0/ticketpilot/pkg/logging"
	"github.com/sweetpotato0/ticketpilot/workflow"
)

// Observer implements workflow.Observer on top of a Kafka writer. Events are
// keyed by ticket ID so one ticket's stage sequence stays in partition order.
type Observer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewObserver creates a Kafka-backed progress event sink.
func NewObserver(brokers []string, topic string) *Observer {
	return &Observer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
		logger: logging.WithComponent("kafka"),
	}
}

// OnEvent publishes one stage transition. Delivery failures are logged, not
// surfaced; event publishing must never stall or fail a workflow run.
func (o *Observer) OnEvent(ctx context.Context, event workflow.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		o.logger.Error("marshal workflow event", "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.TicketID),
		Value: data,
	}
	if err := o.writer.WriteMessages(ctx, msg); err != nil {
		o.logger.Error("publish workflow event",
			"ticket_id", event.TicketID, "stage", event.Stage, "error", err)
	}
}

// Close closes the underlying Kafka writer.
func (o *Observer) Close() error {
	return o.writer.Close()
}
