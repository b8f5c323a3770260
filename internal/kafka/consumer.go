package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

//go:generate mockgen -source internal/kafka/consumer.go -destination=internal/kafka/consumer_mock_test.go -package=kafka

type MessageHandler interface {
	Handle(ctx context.Context, msg kafkago.Message) error
}

type Reader interface {
	Config() kafkago.ReaderConfig
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

type backoff struct {
	idle    time.Duration // nothing to fetch
	fetch   time.Duration // fetch error, e.g. during a rebalance
	handler time.Duration // before redelivering a failed message
	commit  time.Duration
}

var defaultBackoff = backoff{
	idle:    10 * time.Second,
	fetch:   500 * time.Millisecond,
	handler: 200 * time.Millisecond,
	commit:  200 * time.Millisecond,
}

// Consumer fetches messages and hands them to a worker pool. Up to
// workerPoolSize messages are handled at once; offsets are committed strictly
// in fetch order, and a failed message holds back every later commit until a
// redelivery succeeds.
type Consumer struct {
	handler MessageHandler
	reader  Reader
	zlogger *zap.Logger

	workerPoolSize int
	jobs           chan jobItem
	backoff        backoff
}

type jobItem struct {
	msg    kafkago.Message
	result chan error
}

func newJob(msg kafkago.Message) jobItem {
	return jobItem{msg: msg, result: make(chan error, 1)}
}

func NewConsumer(handler MessageHandler, reader Reader, workers int, logger *zap.Logger) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		handler:        handler,
		reader:         reader,
		zlogger:        logger,
		workerPoolSize: workers,
		jobs:           make(chan jobItem, workers*2),
		backoff:        defaultBackoff,
	}
}

// Start blocks until ctx is done and all workers have exited.
func (c *Consumer) Start(ctx context.Context) {
	rc := c.reader.Config()
	c.zlogger.Info("Starting Kafka consumer",
		zap.Strings("brokers", rc.Brokers),
		zap.String("group", rc.GroupID),
		zap.String("topic", rc.Topic),
		zap.Int("workers", c.workerPoolSize),
	)

	var wg sync.WaitGroup
	for i := 0; i < c.workerPoolSize; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, id)
		}(i)
	}
	defer wg.Wait()

	// in fetch order; its capacity caps the number of uncommitted messages
	inflight := make(chan jobItem, c.workerPoolSize)
	committed := make(chan struct{})
	go func() {
		defer close(committed)
		c.committer(ctx, inflight)
	}()
	defer func() {
		close(inflight)
		<-committed
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if isBenignFetchTimeout(err) {
				c.zlogger.Debug("fetch timeout (idle), backing off", zap.Error(err))
				sleepWithContext(ctx, c.backoff.idle)
				continue
			}
			c.zlogger.Warn("FetchMessage error, backing off", zap.Error(err))
			sleepWithContext(ctx, c.backoff.fetch)
			continue
		}

		job := newJob(msg)
		select {
		case inflight <- job:
		case <-ctx.Done():
			return
		}
		if !c.submit(ctx, job) {
			return
		}
	}
}

func (c *Consumer) submit(ctx context.Context, job jobItem) bool {
	select {
	case c.jobs <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

// committer waits for each message in fetch order and commits it once handled.
func (c *Consumer) committer(ctx context.Context, inflight <-chan jobItem) {
	for job := range inflight {
		if !c.await(ctx, job) {
			return
		}
		c.commit(ctx, job.msg)
	}
}

// await blocks until job is handled, redelivering it after every failure.
// It reports false only when ctx ends first.
func (c *Consumer) await(ctx context.Context, job jobItem) bool {
	for {
		var err error
		select {
		case err = <-job.result:
		case <-ctx.Done():
			return false
		}
		if err == nil {
			return true
		}

		msg := job.msg
		c.zlogger.Error("handler failed; message will be redelivered", zap.Error(err),
			zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
		sleepWithContext(ctx, c.backoff.handler)

		job = newJob(msg)
		if !c.submit(ctx, job) {
			return false
		}
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafkago.Message) {
	for {
		err := c.reader.CommitMessages(ctx, msg)
		if err == nil {
			c.zlogger.Debug("message committed",
				zap.String("topic", msg.Topic), zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.zlogger.Warn("commit failed",
			zap.Error(err),
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
		sleepWithContext(ctx, c.backoff.commit)
	}
}

func (c *Consumer) worker(ctx context.Context, id int) {
	logger := c.zlogger.With(zap.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		case it := <-c.jobs:
			msg := it.msg
			start := time.Now()

			err := c.handler.Handle(ctx, msg)

			elapsed := time.Since(start)
			if err != nil {
				logger.Warn("message handling failed",
					zap.Error(err),
					zap.String("topic", msg.Topic),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Duration("elapsed", elapsed),
				)
			} else {
				logger.Debug("message handled",
					zap.String("topic", msg.Topic),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Int("value_bytes", len(msg.Value)),
					zap.Duration("elapsed", elapsed),
				)
			}
			it.result <- err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func isBenignFetchTimeout(err error) bool {
	s := err.Error()
	return strings.Contains(s, "Request Timed Out") ||
		strings.Contains(s, "no messages received from kafka within the allocated time")
}
