// Package notify sends desktop notifications over the session bus.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	method     = busName + ".Notify"

	queueSize = 16
	timeoutMS = int32(6000)
	// urgencyCritical is the freedesktop urgency hint for warnings that
	// should persist.
	urgencyCritical = byte(2)
)

type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

type message struct {
	summary string
	body    string
}

// Notifier delivers notifications from a background goroutine. Warn never
// blocks; notifications beyond the queue are dropped.
type Notifier struct {
	app    string
	obj    caller
	conn   *dbus.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	ch     chan message
	done   chan struct{}
}

// New connects to the session bus.
func New(app string, logger *slog.Logger) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n := newNotifier(app, conn.Object(busName, objectPath), logger)
	n.conn = conn
	return n, nil
}

func newNotifier(app string, obj caller, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		app:    app,
		obj:    obj,
		logger: logger,
		ch:     make(chan message, queueSize),
		done:   make(chan struct{}),
	}
	go n.run()
	return n
}

// Warn queues a critical notification.
func (n *Notifier) Warn(summary, body string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- message{summary: summary, body: body}:
	default:
		n.logger.Debug("notification dropped", "summary", summary)
	}
}

// Close flushes queued notifications and disconnects.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.ch)
	n.mu.Unlock()

	<-n.done
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

func (n *Notifier) run() {
	defer close(n.done)
	for m := range n.ch {
		hints := map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgencyCritical)}
		call := n.obj.Call(method, 0, n.app, uint32(0), "dialog-warning", m.summary, m.body, []string{}, hints, timeoutMS)
		if call != nil && call.Err != nil {
			n.logger.Debug("notification failed", "error", call.Err)
		}
	}
}
