package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/fluxori-systems/fluxori-sub001/internal/logger"
)

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// UsageEvent 回合用量事件，每个成功的回合发布一条供下游对账
type UsageEvent struct {
	OrganizationID uint      `json:"organization_id"`
	UserID         uint      `json:"user_id"`
	ConversationID uint      `json:"conversation_id"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	TotalTokens    int       `json:"total_tokens"`
	Cost           float64   `json:"cost"`
	ProcessingMs   int64     `json:"processing_ms"`
	FinishReason   string    `json:"finish_reason"`
	Timestamp      time.Time `json:"timestamp"`
}

var globalProducer *Producer

// InitProducer 初始化Kafka生产者
func InitProducer(brokers []string, topic string) error {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	globalProducer = &Producer{
		producer: producer,
		topic:    topic,
	}

	logger.Info("Kafka生产者初始化成功", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return nil
}

// GetProducer 获取全局生产者实例
func GetProducer() *Producer {
	return globalProducer
}

// SendUsageEvent 发送用量事件到Kafka
func (p *Producer) SendUsageEvent(event *UsageEvent) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		// 同一对话的事件落在同一分区，保持顺序
		Key:   sarama.StringEncoder(fmt.Sprintf("%d-%d", event.OrganizationID, event.ConversationID)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("organization_id"),
				Value: []byte(fmt.Sprintf("%d", event.OrganizationID)),
			},
			{
				Key:   []byte("provider"),
				Value: []byte(event.Provider),
			},
		},
	}

	partition, offset, err := p.producer.SendMessage(kafkaMsg)
	if err != nil {
		logger.Error("发送Kafka消息失败", zap.Error(err))
		return fmt.Errorf("发送消息失败: %w", err)
	}

	logger.Debug("Kafka消息发送成功",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Uint("conversation_id", event.ConversationID))

	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// PublishUsageEvent 发送用量事件（便捷方法）。
// Kafka未配置时静默跳过，不影响主流程。
func PublishUsageEvent(event *UsageEvent) error {
	producer := GetProducer()
	if producer == nil {
		logger.Warn("Kafka生产者未初始化，跳过消息发送")
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return producer.SendUsageEvent(event)
}
