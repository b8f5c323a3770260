package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	dialTimeout       = 10 * time.Second
	topicReadyTimeout = 10 * time.Second
	topicPollInterval = 500 * time.Millisecond
)

var (
	ErrNoBrokers  = errors.New("no kafka brokers configured")
	ErrEmptyTopic = errors.New("empty kafka topic")
)

// EnsureTopic makes sure the order topic exists with at least numPartitions
// partitions before the consumer joins its group.
func EnsureTopic(ctx context.Context, brokers []string, topic string, numPartitions, replicationFactor int, logger *zap.Logger) error {
	if len(brokers) == 0 {
		return ErrNoBrokers
	}
	if strings.TrimSpace(topic) == "" {
		return ErrEmptyTopic
	}
	logger = logger.With(zap.String("topic", topic))

	dialer := &kafkago.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", brokers[0], err)
	}
	defer conn.Close()

	if n := partitionCount(conn, topic); n > 0 {
		logger.Info("Order topic exists", zap.Int("partitions", n))
		return nil
	}

	if err := createTopic(ctx, dialer, conn, kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return err
	}
	logger.Info("Order topic created",
		zap.Int("partitions", numPartitions),
		zap.Int("replication", replicationFactor),
	)

	n, err := waitForPartitions(ctx, conn, topic, numPartitions)
	if err != nil {
		return err
	}
	logger.Info("Order topic is ready", zap.Int("partitions", n))
	return nil
}

// createTopic sends the request to the cluster controller; topics can only be
// created there.
func createTopic(ctx context.Context, dialer *kafkago.Dialer, conn *kafkago.Conn, cfg kafkago.TopicConfig) error {
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	addr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))

	ctrl, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial controller %s: %w", addr, err)
	}
	defer ctrl.Close()

	// another instance may have won the race
	if err := ctrl.CreateTopics(cfg); err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	return nil
}

func waitForPartitions(ctx context.Context, conn *kafkago.Conn, topic string, want int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, topicReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(topicPollInterval)
	defer ticker.Stop()

	for {
		if n := partitionCount(conn, topic); n >= want {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("topic %s has fewer than %d partitions: %w", topic, want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func partitionCount(conn *kafkago.Conn, topic string) int {
	parts, err := conn.ReadPartitions(topic)
	if err != nil {
		return 0
	}
	return len(parts)
}
