package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/aihub/knowledge-go/internal/logger"
	"go.uber.org/zap"
)

// DocumentEvent 文档处理事件
type DocumentEvent struct {
	Collection string    `json:"collection"`
	DocumentID uint      `json:"document_id"`
	FileName   string    `json:"file_name"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Producer 文档事件生产者。未启用时PublishDocumentEvent是无操作。
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
}

// NewProducer 创建Kafka生产者
func NewProducer(brokers []string, topic string, enabled bool) (*Producer, error) {
	if !enabled {
		return &Producer{enabled: false}, nil
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &Producer{
		producer: producer,
		topic:    topic,
		enabled:  true,
	}, nil
}

// PublishDocumentEvent 发布文档事件；按集合名分区保证同集合事件有序
func (p *Producer) PublishDocumentEvent(event DocumentEvent) error {
	if !p.enabled {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal document event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Collection),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send document event: %w", err)
	}

	logger.Debug("document event published",
		zap.String("collection", event.Collection),
		zap.Uint("document_id", event.DocumentID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if !p.enabled || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
