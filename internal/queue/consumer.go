package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerConfig describes where the notification worker reads from and
// writes to.
type ConsumerConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
	LogPath  string // defaults to logs/notifications.log
}

// NotificationLog appends rendered notifications to a file, one per line.
type NotificationLog struct {
	mu   sync.Mutex
	path string
}

// NewNotificationLog returns a log writing to path, creating the parent
// directory on first write.
func NewNotificationLog(path string) *NotificationLog {
	if path == "" {
		path = filepath.Join("logs", "notifications.log")
	}
	return &NotificationLog{path: path}
}

// Write appends line.
func (n *NotificationLog) Write(line string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(n.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := io.WriteString(f, line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// StartNotificationConsumer connects to RabbitMQ, binds a durable queue to
// the scheduling events and appends every message to the notification
// log.  It reconnects with exponential backoff and returns only when ctx
// is cancelled.  A message that cannot be decoded is rejected without
// requeue so it cannot loop.
func StartNotificationConsumer(ctx context.Context, cfg ConsumerConfig) error {
	out := NewNotificationLog(cfg.LogPath)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Printf("notify-worker: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, cfg, out)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("notify-worker: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg ConsumerConfig, out *NotificationLog) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 50
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		log.Printf("notify-worker: set QoS failed: %v", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range Bindings {
		if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	msgs, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := HandleMessage(d.RoutingKey, d.Body, out); err != nil {
			log.Printf("notify-worker: handle %s failed: %v", d.RoutingKey, err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

// HandleMessage renders one delivery and writes it to out.  Unknown keys
// are skipped without error.
func HandleMessage(key string, body []byte, out *NotificationLog) error {
	line, err := FormatLine(key, body)
	if err != nil {
		return err
	}
	if line == "" {
		log.Printf("notify-worker: skip unknown key=%s", key)
		return nil
	}
	return out.Write(line)
}

// FormatLine renders an event as a single human-friendly log line.  It
// returns "" for routing keys it does not know.
func FormatLine(key string, body []byte) (string, error) {
	switch key {
	case RKSlotCreated, RKSlotCancelled:
		ev, err := Decode[SlotEvent](body)
		if err != nil {
			return "", err
		}
		if key == RKSlotCreated {
			return fmt.Sprintf("[%s] Slot created | slot_id=%s | facility_id=%d | %s -> %s | price=%s\n",
				ev.OccurredAt, ev.SlotID, ev.FacilityID, ev.Start, ev.End, ev.Price), nil
		}
		return fmt.Sprintf("[%s] Slot cancelled by facility | slot_id=%s | facility_id=%d | %s -> %s | reason=%q\n",
			ev.OccurredAt, ev.SlotID, ev.FacilityID, ev.Start, ev.End, ev.Reason), nil

	case RKReservationCreated, RKReservationConfirmed, RKReservationCancelled, RKReservationNoShow:
		ev, err := Decode[ReservationEvent](body)
		if err != nil {
			return "", err
		}
		title := map[string]string{
			RKReservationCreated:   "Reservation created",
			RKReservationConfirmed: "Reservation confirmed",
			RKReservationCancelled: "Reservation cancelled",
			RKReservationNoShow:    "Reservation no-show",
		}[key]
		line := fmt.Sprintf("[%s] %s | reservation_id=%s | slot_id=%s | facility_id=%d | booker=%s | %s -> %s",
			ev.OccurredAt, title, ev.ReservationID, ev.SlotID, ev.FacilityID, bookerLabel(ev), ev.Start, ev.End)
		if ev.CancelledBy != "" {
			line += " | by=" + ev.CancelledBy
		}
		if ev.Reason != "" {
			line += fmt.Sprintf(" | reason=%q", ev.Reason)
		}
		return line + "\n", nil
	}
	return "", nil
}

func bookerLabel(ev ReservationEvent) string {
	if ev.BookerID != nil {
		return fmt.Sprintf("account:%d", *ev.BookerID)
	}
	return fmt.Sprintf("walk-in:%q", ev.ManualBookerName)
}
