package utils

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// 领域事件类型（通知收敛：下游只拿实体ID，格式化与投递渠道由消费方决定）
const (
	EventAssetAppraised       = "asset_appraised"
	EventAuctionCreated       = "auction_created"
	EventAuctionStatusChanged = "auction_status_changed"
	EventBidPlaced            = "bid_placed"
	EventAssetFinalized       = "asset_finalized"
	EventContractCompleted    = "contract_completed"
)

// Event 领域事件消息体
type Event struct {
	Type       string    `json:"type"`
	EntityID   uint      `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier 通知事件发布抽象
type Notifier interface {
	Publish(ctx context.Context, eventType string, entityID uint) error
}

var RabbitMQConn *amqp.Connection
var RabbitMQChannel *amqp.Channel

// InitRabbitMQ 初始化RabbitMQ
func InitRabbitMQ(url string) error {
	// 建立连接
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	RabbitMQConn = conn

	// 建立通道
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	RabbitMQChannel = ch

	// 声明交换机和队列
	return declareExchangeAndQueue()
}

// 声明交换机和队列（拍卖事件通知队列）
func declareExchangeAndQueue() error {
	// 声明交换机
	err := RabbitMQChannel.ExchangeDeclare(
		"auction_event_exchange", // 交换机名
		"direct",                 // 类型
		true,                     // 持久化
		false,                    // 自动删除
		false,                    // 内部
		false,                    // 等待
		nil,                      // 参数
	)
	if err != nil {
		return err
	}

	// 声明队列
	_, err = RabbitMQChannel.QueueDeclare(
		"auction_notify_queue", // 队列名
		true,                   // 持久化
		false,                  // 自动删除
		false,                  // 排他
		false,                  // 等待
		nil,                    // 参数
	)
	if err != nil {
		return err
	}

	// 绑定队列到交换机
	return RabbitMQChannel.QueueBind(
		"auction_notify_queue",   // 队列名
		"auction.event",          // 路由键
		"auction_event_exchange", // 交换机名
		false,
		nil,
	)
}

// AMQPNotifier 基于RabbitMQ的事件发布实现
type AMQPNotifier struct{}

// NewAMQPNotifier 创建事件发布器（依赖InitRabbitMQ先完成初始化）
func NewAMQPNotifier() *AMQPNotifier {
	return &AMQPNotifier{}
}

// Publish 发布领域事件
func (n *AMQPNotifier) Publish(ctx context.Context, eventType string, entityID uint) error {
	msg, err := json.Marshal(Event{
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now(),
	})
	if err != nil {
		return err
	}

	return RabbitMQChannel.Publish(
		"auction_event_exchange", // 交换机名
		"auction.event",          // 路由键
		false,                    // 强制
		false,                    // 立即
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         msg,
			DeliveryMode: amqp.Persistent, // 持久化
			Timestamp:    time.Now(),
		},
	)
}

// ConsumeEvents 消费拍卖事件（通知分发worker）
func ConsumeEvents(handler func(event Event) error) error {
	msgs, err := RabbitMQChannel.Consume(
		"auction_notify_queue", // 队列名
		"",                     // 消费者标签
		false,                  // 自动确认
		false,                  // 排他
		false,                  // 不本地
		false,                  // 等待
		nil,                    // 参数
	)
	if err != nil {
		return err
	}

	// 启动协程消费消息
	go func() {
		for d := range msgs {
			var event Event
			if err := json.Unmarshal(d.Body, &event); err != nil {
				Logger.Error("事件反序列化失败", zap.Error(err))
				d.Nack(false, false) // 拒绝消息，不重新入队
				continue
			}

			if err := handler(event); err != nil {
				Logger.Error("处理事件失败", zap.String("type", event.Type), zap.Uint("entity_id", event.EntityID), zap.Error(err))
				d.Nack(false, true) // 拒绝消息，重新入队
			} else {
				d.Ack(false) // 确认消息
			}
		}
	}()

	return nil
}

// CloseRabbitMQ 关闭RabbitMQ连接
func CloseRabbitMQ() {
	if RabbitMQChannel != nil {
		RabbitMQChannel.Close()
	}
	if RabbitMQConn != nil {
		RabbitMQConn.Close()
	}
}

// MemoryNotifier 进程内事件收集器（测试用）
type MemoryNotifier struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryNotifier 创建进程内事件收集器
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Publish 记录事件
func (n *MemoryNotifier) Publish(ctx context.Context, eventType string, entityID uint) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, Event{Type: eventType, EntityID: entityID, OccurredAt: time.Now()})
	return nil
}

// Events 返回已记录事件快照
func (n *MemoryNotifier) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}
