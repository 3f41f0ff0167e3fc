package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"

	"ticket-pay/internal/store"
	"ticket-pay/models"
	"ticket-pay/monitoring"
)

const notifyQueueKey = "notify:orders"

// Mailer is the outbound confirmation sink (email/PDF generation lives
// outside this service).
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order models.Order) error
}

// LogMailer only records the confirmation; used until a real sink is wired.
type LogMailer struct{}

func (LogMailer) SendOrderConfirmation(ctx context.Context, order models.Order) error {
	slog.Info("order confirmation",
		"order", order.ID,
		"email", order.Customer.Email,
		"status", order.Status,
	)
	return nil
}

// Publisher pushes realtime updates to listening clients.
type Publisher interface {
	Publish(ctx context.Context, channel string, message map[string]any) error
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

func NewPubNubPublisher(pn *pubnub.PubNub) *PubNubPublisher {
	return &PubNubPublisher{pn: pn}
}

func (p *PubNubPublisher) Publish(ctx context.Context, channel string, message map[string]any) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

type notifyJob struct {
	OrderID  string `json:"order_id"`
	QueuedAt int64  `json:"queued_at"`
}

// NotifyService delivers order confirmations fire-and-forget: Dispatch
// queues a job on a Redis list and returns; the Run worker drains it and
// writes the outcome back onto the order as a side channel. Delivery
// failures never feed back into payment status.
type NotifyService struct {
	redis     *redis.Client
	store     store.Store
	mailer    Mailer
	publisher Publisher
}

func NewNotifyService(redisClient *redis.Client, s store.Store, mailer Mailer, publisher Publisher) *NotifyService {
	return &NotifyService{
		redis:     redisClient,
		store:     s,
		mailer:    mailer,
		publisher: publisher,
	}
}

// Dispatch never fails the caller: if the queue is unreachable the job is
// processed inline on a fresh goroutine.
func (n *NotifyService) Dispatch(ctx context.Context, orderID string) {
	job, _ := json.Marshal(notifyJob{OrderID: orderID, QueuedAt: time.Now().Unix()})
	if err := n.redis.LPush(ctx, notifyQueueKey, job).Err(); err != nil {
		slog.Error("notify enqueue failed, sending inline", "order", orderID, "error", err)
		go n.process(context.Background(), orderID)
	}
}

// Run drains the notification queue until ctx is canceled.
func (n *NotifyService) Run(ctx context.Context) {
	for {
		result, err := n.redis.BRPop(ctx, 5*time.Second, notifyQueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			slog.Error("notify queue pop", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var job notifyJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			slog.Error("notify job decode", "payload", result[1], "error", err)
			continue
		}
		n.process(ctx, job.OrderID)
	}
}

func (n *NotifyService) process(ctx context.Context, orderID string) {
	doc, err := n.store.Get(ctx, models.CollectionOrders, orderID)
	if err != nil {
		slog.Error("notify: read order", "order", orderID, "error", err)
		monitoring.TrackNotification(models.NotifyError)
		return
	}
	order := models.OrderFromDoc(doc)

	outcome := models.NotifySent
	if err := n.mailer.SendOrderConfirmation(ctx, order); err != nil {
		slog.Error("order confirmation failed", "order", orderID, "error", err)
		outcome = models.NotifyError
	}

	if n.publisher != nil {
		if err := n.publisher.Publish(ctx, "order-"+orderID, map[string]any{
			"type":     "order_paid",
			"order_id": orderID,
			"status":   order.Status,
		}); err != nil {
			slog.Warn("realtime publish failed", "order", orderID, "error", err)
		}
	}

	if err := n.store.Set(ctx, models.CollectionOrders, orderID, store.Doc{
		"notification_status": outcome,
	}); err != nil {
		slog.Error("record notification status", "order", orderID, "error", err)
	}
	monitoring.TrackNotification(outcome)
}
