package bus

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
)

// Channel is the Postgres notification channel the row-change triggers
// publish on.
const Channel = "row_changes"

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Listener holds a dedicated Postgres connection on LISTEN and forwards each
// decoded row change to a publish callback. Delivery is best-effort:
// notifications sent while the connection is down are lost, which is why
// clients run a reconciliation poll as backstop.
type Listener struct {
	databaseURL string
	publish     func(ChangeEvent)
}

func NewListener(databaseURL string, publish func(ChangeEvent)) *Listener {
	return &Listener{databaseURL: databaseURL, publish: publish}
}

// Run listens until ctx is cancelled, reconnecting with backoff after any
// connection error.
func (l *Listener) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		log.Printf("bus listener disconnected error=%v retry_in=%s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return err
	}
	log.Printf("bus listener connected channel=%s", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		event, err := DecodeNotification([]byte(notification.Payload))
		if err != nil {
			log.Printf("bus listener dropped payload error=%v", err)
			continue
		}
		l.publish(event)
	}
}
