package mqtt

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func msg(b byte) bufferedMsg {
	return bufferedMsg{topic: Topic("porch"), payload: []byte{b}}
}

func drain(q *offlineQueue) []byte {
	var out []byte
	for {
		m, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, m.payload[0])
	}
}

func newTestQueue(capacity int) *offlineQueue {
	return newOfflineQueue(capacity, zap.NewNop().Sugar())
}

func TestQueueEmpty(t *testing.T) {
	q := newTestQueue(3)
	if _, ok := q.pop(); ok {
		t.Error("pop on empty queue should report false")
	}
	if q.len() != 0 {
		t.Errorf("expected len 0, got %d", q.len())
	}
}

func TestQueueFIFO(t *testing.T) {
	q := newTestQueue(5)
	for i := byte(1); i <= 3; i++ {
		if q.push(msg(i)) {
			t.Fatalf("push %d should not evict", i)
		}
	}
	if q.len() != 3 {
		t.Fatalf("expected len 3, got %d", q.len())
	}
	if got := drain(q); string(got) != string([]byte{1, 2, 3}) {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestQueueEvictsOldest(t *testing.T) {
	q := newTestQueue(3)
	evictions := 0
	for i := byte(1); i <= 7; i++ {
		if q.push(msg(i)) {
			evictions++
		}
	}
	if evictions != 4 || q.dropped != 4 {
		t.Errorf("expected 4 evictions, got %d (dropped=%d)", evictions, q.dropped)
	}
	if got := drain(q); string(got) != string([]byte{5, 6, 7}) {
		t.Errorf("expected the newest [5 6 7], got %v", got)
	}
}

func TestQueueWrapsAfterPartialDrain(t *testing.T) {
	q := newTestQueue(3)
	q.push(msg(1))
	q.push(msg(2))
	q.pop()
	q.push(msg(3))
	q.push(msg(4)) // wraps into slot 0
	if q.len() != 3 {
		t.Fatalf("expected len 3, got %d", q.len())
	}
	if got := drain(q); string(got) != string([]byte{2, 3, 4}) {
		t.Errorf("expected [2 3 4], got %v", got)
	}
}

func TestQueueRequeueGoesFirst(t *testing.T) {
	q := newTestQueue(3)
	q.push(msg(1))
	q.push(msg(2))
	m, _ := q.pop()
	q.requeue(m)
	if got := drain(q); string(got) != string([]byte{1, 2}) {
		t.Errorf("expected requeued message first, got %v", got)
	}
}

func TestQueueRequeueWhenFullDropsIt(t *testing.T) {
	q := newTestQueue(2)
	q.push(msg(1))
	m, _ := q.pop()
	q.push(msg(2))
	q.push(msg(3))
	q.requeue(m)
	if q.dropped != 1 {
		t.Errorf("expected 1 dropped, got %d", q.dropped)
	}
	if got := drain(q); string(got) != string([]byte{2, 3}) {
		t.Errorf("expected newer messages kept, got %v", got)
	}
}

func TestQueuePreservesFields(t *testing.T) {
	q := newTestQueue(2)
	q.push(bufferedMsg{topic: TopicSystem("porch"), payload: []byte("x"), qos: 1, retained: true})
	m, ok := q.pop()
	if !ok {
		t.Fatal("expected a message")
	}
	if m.topic != "home/button/porch/system" || m.qos != 1 || !m.retained || string(m.payload) != "x" {
		t.Errorf("fields not preserved: %+v", m)
	}
}

func TestQueueOverflowWarnsOncePerOutage(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	q := newOfflineQueue(2, zap.New(core).Sugar())

	for i := byte(0); i < 6; i++ {
		q.push(msg(i))
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 overflow warning, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["capacity"]; got != int64(2) {
		t.Errorf("expected capacity 2 in warning, got %v", got)
	}

	drain(q)
	for i := byte(0); i < 3; i++ {
		q.push(msg(i))
	}
	if logs.Len() != 2 {
		t.Errorf("expected a second warning after the queue emptied, got %d", logs.Len())
	}
}
