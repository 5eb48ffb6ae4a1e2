package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/docuclean/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// processingGroup load-balances processing requests across workers. Stop
// requests are fanned out to every worker because only the one holding the
// run can act on them.
const processingGroup = "workers"

type Queue struct {
	conn           *nats.Conn
	processSubject string
	stopSubject    string
	executor       *resilience.Executor
}

type Options struct {
	StopSubject          string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, processSubject string) (*Queue, error) {
	return NewWithOptions(url, processSubject, Options{})
}

func NewWithOptions(url, processSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	stopSubject := options.StopSubject
	if stopSubject == "" {
		stopSubject = processSubject + ".stop"
	}

	conn, err := nats.Connect(
		url,
		nats.Name("docuclean"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		processSubject: processSubject,
		stopSubject:    stopSubject,
		executor:       options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishProcessingRequested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.processSubject, documentID)
}

func (q *Queue) PublishStopRequested(ctx context.Context, documentID string) error {
	return q.publish(ctx, q.stopSubject, documentID)
}

// SubscribeProcessingRequested blocks until ctx is done, then drains.
func (q *Queue) SubscribeProcessingRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.processSubject, processingGroup, handler)
}

// SubscribeStopRequested blocks until ctx is done, then drains.
func (q *Queue) SubscribeStopRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.stopSubject, "", handler)
}

func (q *Queue) publish(ctx context.Context, subject, documentID string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(documentID)); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

func (q *Queue) subscribe(ctx context.Context, subject, group string, handler func(context.Context, string) error) error {
	onMessage := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		documentID := string(msg.Data)
		if documentID == "" {
			slog.Warn("nats_empty_message", "subject", subject)
			return
		}
		if err := handler(ctx, documentID); err != nil {
			slog.Error("queue_handler_failed", "subject", subject, "document_id", documentID, "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, onMessage)
	} else {
		sub, err = q.conn.Subscribe(subject, onMessage)
	}
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain subscription %s: %w", subject, err)
	}
	return nil
}
