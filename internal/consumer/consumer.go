package consumer

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"

	"github.com/squadup/squadup/internal/push"
	"github.com/squadup/squadup/internal/ws"
)

// PushConsumer 消费推送主题，把载荷投递给目标用户的在线连接
type PushConsumer struct {
	hub *ws.Hub
}

func NewPushConsumer(hub *ws.Hub) *PushConsumer {
	return &PushConsumer{hub: hub}
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (consumer *PushConsumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (consumer *PushConsumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (consumer *PushConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var payload push.Payload
		if err := json.Unmarshal(message.Value, &payload); err != nil {
			log.Printf("反序列化推送载荷失败: %v", err)
			session.MarkMessage(message, "")
			continue
		}

		// 不在线就丢弃：未读通知走文档库里的通知流，上线后由提示接管
		if consumer.hub.Online(payload.TargetUID) {
			consumer.hub.SendToUser(payload.TargetUID, ws.FramePush, payload)
		}

		session.MarkMessage(message, "")
	}
	return nil
}

func StartConsumer(brokers []string, groupID string, topic string, consumer *PushConsumer) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		log.Fatalf("创建消费者组客户端失败: %v", err)
	}

	ctx := context.Background()
	go func() {
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				log.Printf("消费者错误: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
}
