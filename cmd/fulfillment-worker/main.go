package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/hasan-abir/commerceproject/internal/config"
	"github.com/hasan-abir/commerceproject/internal/infra/mq"
	"github.com/hasan-abir/commerceproject/internal/logging"
	"github.com/hasan-abir/commerceproject/internal/notifier"
	"github.com/hasan-abir/commerceproject/internal/repository/mysql"
	"github.com/hasan-abir/commerceproject/internal/service"
)

func init() {
	// 初始化监控
	_ = service.GetMonitor()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logging.Init(false)

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)

	taxRate := decimal.RequireFromString(cfg.Checkout.TaxRate)
	svc := service.NewFulfillmentService(db, notifier.New(&cfg.SMTP), taxRate)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(cfg.Checkout.FulfillmentQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(cfg.Checkout.FulfillmentQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("fulfillment worker started, waiting for messages...")

	for d := range msgs {
		var m service.FulfillmentMessage
		if err := json.Unmarshal(d.Body, &m); err != nil {
			log.Printf("invalid message: %v", err)
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}
		handleMessage(context.Background(), svc, m, d)
	}
}

func handleMessage(ctx context.Context, svc *service.FulfillmentService, m service.FulfillmentMessage, d amqp.Delivery) {
	if err := svc.Fulfill(ctx, m); err != nil {
		log.Printf("fulfillment failed for session %s: %v", m.SessionKey, err)
		if errors.Is(err, service.ErrCartGone) {
			// 购物车已不在 PROCESSING，重投也不会成功，丢弃
			_ = d.Nack(false, false)
			return
		}
		// 暂时性错误（数据库抖动等），重新入队
		_ = d.Nack(false, true)
		return
	}

	log.Printf("fulfilled cart for session %s", m.SessionKey)
	if err := d.Ack(false); err != nil {
		log.Printf("failed to ack message: %v", err)
	}
}
