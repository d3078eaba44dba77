package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// TelemetryMessage is the JSON body published for each event
type TelemetryMessage struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Publisher is the part of a NATS connection the sink needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSEventSink publishes events to <subject>.<event name>
type NATSEventSink struct {
	pub     Publisher
	subject string
}

// NewNATSEventSink publishes through pub under subject
func NewNATSEventSink(pub Publisher, subject string) *NATSEventSink {
	return &NATSEventSink{pub: pub, subject: subject}
}

// ConnectNATS opens a connection that reconnects forever
func ConnectNATS(url string, logger *zap.SugaredLogger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("court-case-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnw("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (s *NATSEventSink) TrackEvent(ctx context.Context, name string, properties map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(TelemetryMessage{
		Name:       name,
		Properties: properties,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal telemetry event: %w", err)
	}
	return s.pub.Publish(s.subject+"."+name, data)
}
