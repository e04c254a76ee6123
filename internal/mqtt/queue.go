package mqtt

import "go.uber.org/zap"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue holds messages published while the broker is unreachable.
// A full queue evicts its oldest message. Not safe for concurrent use.
type offlineQueue struct {
	msgs    []bufferedMsg
	start   int // oldest message
	size    int
	dropped uint64
	warned  bool // an eviction was logged since the queue was last empty
	logger  *zap.SugaredLogger
}

func newOfflineQueue(capacity int, logger *zap.SugaredLogger) *offlineQueue {
	return &offlineQueue{
		msgs:   make([]bufferedMsg, capacity),
		logger: logger,
	}
}

// push appends msg and reports whether an older message was evicted.
func (q *offlineQueue) push(msg bufferedMsg) bool {
	n := len(q.msgs)
	if q.size == n {
		q.msgs[q.start] = msg
		q.start = (q.start + 1) % n
		q.evict()
		return true
	}
	q.msgs[(q.start+q.size)%n] = msg
	q.size++
	return false
}

// pop removes and returns the oldest message.
func (q *offlineQueue) pop() (bufferedMsg, bool) {
	if q.size == 0 {
		return bufferedMsg{}, false
	}
	msg := q.msgs[q.start]
	q.msgs[q.start] = bufferedMsg{}
	q.start = (q.start + 1) % len(q.msgs)
	q.size--
	if q.size == 0 {
		q.warned = false
	}
	return msg, true
}

// requeue puts msg back at the front after a failed replay. If newer
// messages filled the queue in the meantime, msg is the one dropped.
func (q *offlineQueue) requeue(msg bufferedMsg) {
	n := len(q.msgs)
	if q.size == n {
		q.evict()
		return
	}
	q.start = (q.start - 1 + n) % n
	q.msgs[q.start] = msg
	q.size++
}

func (q *offlineQueue) evict() {
	q.dropped++
	if !q.warned {
		q.logger.Warnw("Offline buffer full, dropping oldest", "capacity", len(q.msgs))
		q.warned = true
	}
}

func (q *offlineQueue) len() int {
	return q.size
}
