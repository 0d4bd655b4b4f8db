// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"mangrat-go/internal/config"
	"mangrat-go/pkg/log"
	"mangrat-go/pkg/tasks"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是一条 teach 任务最多的处理次数，超过后提交 offset 放弃重试。
const maxAttempts = 3

// 读取失败后的退避时间，从 fetchBackoff 开始翻倍，最长 maxFetchBackoff。
const (
	fetchBackoff    = time.Second
	maxFetchBackoff = 30 * time.Second
)

// TaskProcessor 处理从 Kafka 读取到的 teach 任务。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.TeachTask) error
}

// MessageWriter 抽象了 kafka.Writer，便于测试。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer 把知识事件写入事件主题。
type Producer struct {
	writer MessageWriter
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers(cfg.Brokers)...),
		Topic:        cfg.EventTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.EventTopic)
	return &Producer{writer: w}
}

// NewProducerWithWriter 使用给定的 writer 创建生产者。
func NewProducerWithWriter(w MessageWriter) *Producer {
	return &Producer{writer: w}
}

// Publish 发送一条知识事件，以分区名作为 key 保证同一分区内有序。
func (p *Producer) Publish(ctx context.Context, event tasks.KnowledgeEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal knowledge event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Partition),
		Value: value,
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// MessageReader 抽象了 kafka.Reader，便于测试。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 从 teach 主题读取任务并交给 TaskProcessor 处理。
type Consumer struct {
	reader     MessageReader
	topic      string
	processor  TaskProcessor
	rdb        *redis.Client
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewConsumer 创建一个 teach 任务消费者。rdb 为 nil 时失败任务直接提交。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg.Brokers),
		Topic:    cfg.TeachTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return NewConsumerWithReader(r, cfg.TeachTopic, processor, rdb)
}

// NewConsumerWithReader 使用给定的 reader 创建消费者。
func NewConsumerWithReader(r MessageReader, topic string, processor TaskProcessor, rdb *redis.Client) *Consumer {
	return &Consumer{
		reader:     r,
		topic:      topic,
		processor:  processor,
		rdb:        rdb,
		backoff:    fetchBackoff,
		maxBackoff: maxFetchBackoff,
	}
}

// Run 循环消费直到 ctx 被取消。读取失败时退避后继续，不会退出。
func (c *Consumer) Run(ctx context.Context) {
	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", c.topic)
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	wait := c.backoff
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Warnf("从 Kafka 读取消息失败，%s 后重试: %v", wait, err)
			select {
			case <-ctx.Done():
				log.Info("Kafka 消费者已停止")
				return
			case <-time.After(wait):
			}
			if wait *= 2; wait > c.maxBackoff {
				wait = c.maxBackoff
			}
			continue
		}
		wait = c.backoff

		// 未提交时在本地退避重试同一条消息
		for attempt := 1; !c.handle(ctx, m); attempt++ {
			if attempt >= maxAttempts {
				log.Warnf("teach 任务重试次数耗尽，放弃: offset=%d", m.Offset)
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}
}

// handle 处理一条消息，返回是否应提交 offset。
func (c *Consumer) handle(ctx context.Context, m kafka.Message) bool {
	var task tasks.TeachTask
	if err := json.Unmarshal(m.Value, &task); err != nil {
		// 消息格式错误，直接提交，避免阻塞队列
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		return true
	}

	attemptsKey := fmt.Sprintf("kafka:attempts:%d:%d", m.Partition, m.Offset)
	if err := c.processor.Process(ctx, task); err != nil {
		log.Errorf("处理 teach 任务失败: offset=%d, error: %v", m.Offset, err)
		if c.rdb == nil {
			return true
		}
		attempts, incErr := c.rdb.Incr(ctx, attemptsKey).Result()
		if incErr != nil {
			// Redis 异常时保守处理：不提交 offset，稍后重试
			return false
		}
		_ = c.rdb.Expire(ctx, attemptsKey, 24*time.Hour).Err()
		if attempts >= maxAttempts {
			log.Errorf("teach 任务多次失败(>=%d)，提交 offset 终止重试: offset=%d", maxAttempts, m.Offset)
			return true
		}
		return false
	}

	if c.rdb != nil {
		_ = c.rdb.Del(ctx, attemptsKey).Err()
	}
	return true
}

func brokers(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
