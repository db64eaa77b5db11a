package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/contextbridge/internal/extractor"
)

// HandoverEvent is published when a manager approves an extracted handover.
type HandoverEvent struct {
	HandoverID  string           `json:"handover_id"`
	SessionID   string           `json:"session_id"`
	Account     string           `json:"account"`
	ModelUsed   string           `json:"model_used"`
	Record      extractor.Record `json:"record"`
	ExtractedAt time.Time        `json:"extracted_at"`
	ApprovedAt  time.Time        `json:"approved_at"`
}

func NewHandoverEvent(sessionID, account, modelUsed string, rec extractor.Record, extractedAt time.Time) HandoverEvent {
	return HandoverEvent{
		HandoverID:  uuid.NewString(),
		SessionID:   sessionID,
		Account:     account,
		ModelUsed:   modelUsed,
		Record:      rec,
		ExtractedAt: extractedAt,
		ApprovedAt:  time.Now().UTC(),
	}
}

type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("contextbridge"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Close() {
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
		c.conn.Close()
	}
}
