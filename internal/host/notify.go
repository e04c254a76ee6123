package host

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier reports service state to systemd over $NOTIFY_SOCKET.
// Without a socket (not started by systemd) every call is a no-op.
type Notifier struct {
	send func(state string) (bool, error)
}

// NewNotifier creates a Notifier using sd_notify.
func NewNotifier() *Notifier {
	return &Notifier{
		send: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// Ready tells systemd the daemon has finished starting.
// Returns false if no notification socket is configured.
func (n *Notifier) Ready() (bool, error) {
	return n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd the daemon is shutting down.
func (n *Notifier) Stopping() (bool, error) {
	return n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl.
func (n *Notifier) Status(msg string) (bool, error) {
	return n.send("STATUS=" + msg)
}
