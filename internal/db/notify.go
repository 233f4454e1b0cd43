package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"postop-monitor/pkg"
)

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
)

// Notifier dispatches doctor notifications over a Postgres NOTIFY channel.
// Hospital-side consumers LISTEN on the same channel and route the payload to
// paging or email.
type Notifier struct {
	DB      *sql.DB
	Channel string
}

// NewNotifier constructs a Notifier. The channel should match the
// NOTIFY_CHANNEL configuration on the consumer side.
func NewNotifier(db *sql.DB, channel string) *Notifier {
	return &Notifier{DB: db, Channel: channel}
}

// NotifyDoctor publishes the patient snapshot as JSON on the channel.
// pg_notify takes the channel name as a value, so both sides bind as
// parameters.
func (n *Notifier) NotifyDoctor(ctx context.Context, payload pkg.DoctorPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal doctor payload: %w", err)
	}
	_, err = n.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", n.Channel, string(body))
	return err
}

// Listen yields raw notification payloads from the channel until the context
// is cancelled. The doctor dashboard uses it to refresh without polling.
func (n *Notifier) Listen(ctx context.Context, connInfo string) (<-chan string, error) {
	listener := pq.NewListener(connInfo, minReconnect, maxReconnect, nil)
	if err := listener.Listen(n.Channel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen on %s: %w", n.Channel, err)
	}
	ch := make(chan string)
	go func() {
		defer func() {
			listener.Close()
			close(ch)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case note, ok := <-listener.Notify:
				if !ok {
					return
				}
				if note != nil {
					ch <- note.Extra
				}
			}
		}
	}()
	return ch, nil
}
