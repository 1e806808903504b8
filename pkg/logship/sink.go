package logship

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Sink delivers records to a log transport.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

// NewSink builds the sink selected by cfg.
func NewSink(cfg config.LogShipConfig, logger zerolog.Logger) (Sink, error) {
	switch cfg.Sink {
	case "", "log":
		return NewLogSink(logger), nil
	case "nats":
		nc, err := nats.Connect(cfg.URL, nats.Name("stkgate"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return NewNATSSink(nc, cfg.Subject), nil
	case "kafka":
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("kafka sink requires at least one broker")
		}
		return NewKafkaSink(cfg.Brokers, cfg.Subject), nil
	default:
		return nil, fmt.Errorf("unknown logship sink %q", cfg.Sink)
	}
}

// LogSink writes records to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink returns a sink that logs each record at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Write(_ context.Context, rec Record) error {
	s.logger.Info().
		Str("id", rec.ID).
		Str("dest", string(rec.Dest)).
		Str("stk", rec.Stocker).
		Str("name", rec.Name).
		Msg(rec.Body)
	return nil
}

func (s *LogSink) Close() error { return nil }

// NATSSink publishes JSON records on <subject>.<stocker>.
type NATSSink struct {
	nc      *nats.Conn
	subject string
}

// NewNATSSink returns a sink publishing on nc. Close flushes and closes nc.
func NewNATSSink(nc *nats.Conn, subject string) *NATSSink {
	return &NATSSink{nc: nc, subject: subject}
}

func (s *NATSSink) Write(ctx context.Context, rec Record) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	subject := s.subject
	if rec.Stocker != "" {
		subject += "." + rec.Stocker
	}
	return s.nc.Publish(subject, data)
}

func (s *NATSSink) Close() error {
	if err := s.nc.Flush(); err != nil {
		s.nc.Close()
		return err
	}
	s.nc.Close()
	return nil
}

// KafkaSink produces JSON records keyed by stocker name.
type KafkaSink struct {
	writer *kafka.Writer
}

// NewKafkaSink returns a sink producing to topic on the given brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (s *KafkaSink) Write(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.Stocker),
		Value: data,
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
