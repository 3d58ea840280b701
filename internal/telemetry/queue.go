package telemetry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

var log = logrus.New()

// queue is one channel's bounded priority mailbox. Its capacity bounds
// only sample records: a sample that arrives when the queue already
// holds cap samples evicts the oldest sample. Transition, result, and
// fault records are never dropped and do not count against cap.
type queue struct {
	mu       sync.Mutex
	items    []domain.Record
	cap      int
	nSamples int
	overflow bool
}

func newQueue(cap int) *queue {
	return &queue{cap: cap}
}

func (q *queue) offer(rec domain.Record) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if rec.Kind != domain.KindSample {
		q.items = append(q.items, rec)
		return
	}

	if q.nSamples >= q.cap {
		if !q.overflow {
			log.Warnf("telemetry: channel %d sample queue full (%d), dropping oldest", rec.ChannelID, q.cap)
			q.overflow = true
		}
		q.evictOldestSample()
	}
	q.items = append(q.items, rec)
	q.nSamples++
}

func (q *queue) evictOldestSample() {
	for i, it := range q.items {
		if it.Kind == domain.KindSample {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.nSamples--
			return
		}
	}
}

// pop removes and returns the oldest queued record, if any.
func (q *queue) pop() (domain.Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.Record{}, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	if r.Kind == domain.KindSample {
		q.nSamples--
	}
	q.overflow = false
	return r, true
}

// pushFront requeues a record at the head, used when the sink rejects a
// record the router must not drop.
func (q *queue) pushFront(rec domain.Record) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]domain.Record{rec}, q.items...)
	if rec.Kind == domain.KindSample {
		q.nSamples++
	}
}
