// Package nats publishes and consumes filing lifecycle events so the
// api can hand ingestion work to workers.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/finraglab/finrag/internal/infrastructure/resilience"
)

const workerGroup = "ingest-workers"

type filingEvent struct {
	FilingID   string    `json:"filing_id"`
	ReceivedAt time.Time `json:"received_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string, executor *resilience.Executor, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("finrag"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject, executor: executor, logger: logger}, nil
}

func (q *Queue) PublishFilingReceived(ctx context.Context, filingID string) error {
	data, err := json.Marshal(filingEvent{FilingID: filingID, ReceivedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode filing event: %w", err)
	}
	publish := func(context.Context) error {
		return q.conn.Publish(q.subject, data)
	}
	if q.executor == nil {
		return publish(ctx)
	}
	return q.executor.Execute(ctx, "nats_publish", classifyQueueError, publish)
}

// SubscribeFilingReceived delivers each event to handler on the queue
// group, so events spread across worker instances without duplication.
func (q *Queue) SubscribeFilingReceived(ctx context.Context, handler func(ctx context.Context, filingID string)) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		var event filingEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			q.logger.Error("malformed filing event", "subject", q.subject, "error", err)
			return
		}
		handler(ctx, event.FilingID)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", q.subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			q.logger.Warn("drain subscription", "error", err)
		}
	}()
	return nil
}

func (q *Queue) Close() {
	if err := q.conn.Drain(); err != nil {
		q.logger.Warn("drain nats connection", "error", err)
	}
	q.conn.Close()
}
