package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-pay/internal/status"
	"ticket-pay/internal/store"
	"ticket-pay/models"
)

type recordingMailer struct {
	mu      sync.Mutex
	sent    []models.Order
	sendErr error
}

func (m *recordingMailer) SendOrderConfirmation(ctx context.Context, order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, order)
	return m.sendErr
}

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	messages []map[string]any
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.messages = append(p.messages, message)
	return nil
}

func seedPaidOrder(t *testing.T, s *store.Memory, id string) {
	t.Helper()
	require.NoError(t, s.Set(context.Background(), models.CollectionOrders, id, store.Doc{
		"status":         status.Paid,
		"customer_email": "budi@example.com",
	}))
}

func TestNotify_DispatchQueuesJob(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewMemory()
	n := NewNotifyService(db, s, &recordingMailer{}, nil)

	// The queued value embeds a timestamp, so match on command and key only.
	mock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectLPush(notifyQueueKey, "any").SetVal(1)

	n.Dispatch(context.Background(), "TP-1")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotify_DispatchFallsBackInlineOnQueueError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewMemory()
	mailer := &recordingMailer{}
	n := NewNotifyService(db, s, mailer, nil)
	seedPaidOrder(t, s, "TP-1")

	mock.CustomMatch(func(expected, actual []interface{}) error {
		return nil
	}).ExpectLPush(notifyQueueKey, "any").SetErr(errors.New("redis down"))

	n.Dispatch(context.Background(), "TP-1")

	// The inline fallback runs on its own goroutine.
	assert.Eventually(t, func() bool {
		doc, err := s.Get(context.Background(), models.CollectionOrders, "TP-1")
		return err == nil && doc.GetString("notification_status") == models.NotifySent
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotify_ProcessRecordsSent(t *testing.T) {
	db, _ := redismock.NewClientMock()
	s := store.NewMemory()
	mailer := &recordingMailer{}
	publisher := &recordingPublisher{}
	n := NewNotifyService(db, s, mailer, publisher)
	seedPaidOrder(t, s, "TP-1")
	ctx := context.Background()

	n.process(ctx, "TP-1")

	doc, err := s.Get(ctx, models.CollectionOrders, "TP-1")
	require.NoError(t, err)
	assert.Equal(t, models.NotifySent, doc.GetString("notification_status"))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "budi@example.com", mailer.sent[0].Customer.Email)

	require.Len(t, publisher.channels, 1)
	assert.Equal(t, "order-TP-1", publisher.channels[0])
	assert.Equal(t, "order_paid", publisher.messages[0]["type"])
}

func TestNotify_ProcessRecordsError(t *testing.T) {
	db, _ := redismock.NewClientMock()
	s := store.NewMemory()
	mailer := &recordingMailer{sendErr: errors.New("smtp refused")}
	n := NewNotifyService(db, s, mailer, nil)
	seedPaidOrder(t, s, "TP-1")
	ctx := context.Background()

	n.process(ctx, "TP-1")

	doc, err := s.Get(ctx, models.CollectionOrders, "TP-1")
	require.NoError(t, err)
	// Delivery failure is recorded on the side channel only; the payment
	// status is untouched.
	assert.Equal(t, models.NotifyError, doc.GetString("notification_status"))
	assert.Equal(t, status.Paid, doc.GetString("status"))
}

func TestNotify_RunDrainsQueue(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewMemory()
	mailer := &recordingMailer{}
	n := NewNotifyService(db, s, mailer, nil)
	seedPaidOrder(t, s, "TP-1")

	job, err := json.Marshal(notifyJob{OrderID: "TP-1", QueuedAt: time.Now().Unix()})
	require.NoError(t, err)
	mock.ExpectBRPop(5*time.Second, notifyQueueKey).SetVal([]string{notifyQueueKey, string(job)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		doc, err := s.Get(context.Background(), models.CollectionOrders, "TP-1")
		return err == nil && doc.GetString("notification_status") == models.NotifySent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
