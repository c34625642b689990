package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/manifest-network/benchie/internal/models"
	"github.com/manifest-network/benchie/internal/output"
)

// MessageWriter is the subset of *kafka.Writer used to publish results.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOutputHandler publishes benchmark results to a Kafka topic.
type KafkaOutputHandler struct {
	writer MessageWriter
	mu     sync.Mutex
}

// NewKafkaOutputHandler returns a handler publishing to topic on brokers.
func NewKafkaOutputHandler(brokers []string, topic string) *KafkaOutputHandler {
	return NewKafkaOutputHandlerWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	})
}

// NewKafkaOutputHandlerWithWriter returns a handler publishing through w.
func NewKafkaOutputHandlerWithWriter(w MessageWriter) *KafkaOutputHandler {
	return &KafkaOutputHandler{writer: w}
}

func (k *KafkaOutputHandler) WriteResult(ctx context.Context, result *models.Result) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer == nil {
		return errors.New("kafka output is closed")
	}
	rec := output.NewRecord(result)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%s-%d", rec.Workload, rec.StartedAt.UnixNano())),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Info("Published benchmark result to Kafka", "workload", rec.Workload, "count", rec.Count)
	return nil
}

func (k *KafkaOutputHandler) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer != nil {
		err := k.writer.Close()
		k.writer = nil
		return err
	}
	return nil
}
