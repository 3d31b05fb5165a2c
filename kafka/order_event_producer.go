package kafka

import (
	"context"
	"encoding/json"

	"companion-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OrderEventProducer publishes order lifecycle events for downstream
// consumers. Messages are keyed by order id so one order's events stay
// ordered within a partition.
type OrderEventProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewOrderEventProducer(brokers []string, topic string, logger *zap.Logger) *OrderEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Kafka producer initialized", zap.String("topic", topic), zap.Strings("brokers", brokers))
	return &OrderEventProducer{writer: w, logger: logger}
}

func (p *OrderEventProducer) SendOrderEvent(event models.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(context.Background(), msg); err != nil {
		p.logger.Error("Failed to send order event", zap.String("type", event.Type), zap.Error(err))
		return err
	}

	p.logger.Debug("Order event sent", zap.String("type", event.Type), zap.String("order_id", event.OrderID))
	return nil
}

func (p *OrderEventProducer) Close() {
	_ = p.writer.Close()
	p.logger.Info("Kafka producer closed")
}
