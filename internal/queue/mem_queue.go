package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cricksy/video-analysis/internal/interfaces"
)

// inFlightMessage tracks a received-but-undeleted message and when its
// visibility window expires, so ChangeVisibility/expiry can put it back in
// the visible queue the way SQS would.
type inFlightMessage struct {
	msg       interfaces.Message
	visibleAt time.Time
}

// MemQueue is an in-memory interfaces.MessageQueue for tests and local
// development, modeled on SQS's visibility-timeout semantics without
// requiring a real queue (spec §2 MessageQueue port).
type MemQueue struct {
	mu              sync.Mutex
	pending         []string // job IDs waiting to be received
	inFlight        map[string]*inFlightMessage // keyed by receipt handle
	requeuedCounts  map[string]int // job ID -> receive count of a delivery whose visibility expired
	visibilityTimeout time.Duration
}

// NewMemQueue creates an empty in-memory queue with the given default
// visibility timeout.
func NewMemQueue(visibilityTimeout time.Duration) *MemQueue {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 30 * time.Second
	}
	return &MemQueue{
		inFlight:          make(map[string]*inFlightMessage),
		requeuedCounts:    make(map[string]int),
		visibilityTimeout: visibilityTimeout,
	}
}

func (q *MemQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, jobID)
	return nil
}

func (q *MemQueue) Receive(ctx context.Context, maxMessages int, waitTime time.Duration) ([]interfaces.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	deadline := time.Now().Add(waitTime)
	for {
		q.mu.Lock()
		q.requeueExpiredLocked()

		n := maxMessages
		if n > len(q.pending) {
			n = len(q.pending)
		}
		if n == 0 {
			q.mu.Unlock()
			if time.Now().After(deadline) || waitTime <= 0 {
				return nil, nil
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(50 * time.Millisecond):
				continue
			}
		}

		claimed := q.pending[:n]
		q.pending = q.pending[n:]

		messages := make([]interfaces.Message, 0, n)
		for _, jobID := range claimed {
			handle := uuid.New().String()
			receiveCount := 1
			if existing := q.findReceiveCountLocked(jobID); existing > 0 {
				receiveCount = existing + 1
			}
			delete(q.requeuedCounts, jobID)
			m :=interfaces.Message{ID: handle, ReceiptHandle: handle, JobID: jobID, ReceiveCount: receiveCount}
			q.inFlight[handle] = &inFlightMessage{msg: m, visibleAt: time.Now().Add(q.visibilityTimeout)}
			messages = append(messages, m)
		}
		q.mu.Unlock()
		return messages, nil
	}
}

// findReceiveCountLocked looks for a prior delivery of the same job, either
// still in-flight or requeued after its visibility expired, so redelivery
// after a visibility timeout increments ReceiveCount instead of resetting
// it. Caller holds q.mu.
func (q *MemQueue) findReceiveCountLocked(jobID string) int {
	max := q.requeuedCounts[jobID]
	for _, m := range q.inFlight {
		if m.msg.JobID == jobID && m.msg.ReceiveCount > max {
			max = m.msg.ReceiveCount
		}
	}
	return max
}

// requeueExpiredLocked moves in-flight messages whose visibility window has
// passed back onto the pending slice. Caller holds q.mu.
func (q *MemQueue) requeueExpiredLocked() {
	now := time.Now()
	for handle, m := range q.inFlight {
		if now.After(m.visibleAt) {
			q.pending = append(q.pending, m.msg.JobID)
			if m.msg.ReceiveCount > q.requeuedCounts[m.msg.JobID] {
				q.requeuedCounts[m.msg.JobID] = m.msg.ReceiveCount
			}
			delete(q.inFlight, handle)
		}
	}
}

func (q *MemQueue) Delete(ctx context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inFlight[receiptHandle]; !ok {
		return fmt.Errorf("receipt handle not found or already deleted")
	}
	delete(q.inFlight, receiptHandle)
	return nil
}

func (q *MemQueue) ChangeVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.inFlight[receiptHandle]
	if !ok {
		return fmt.Errorf("receipt handle not found")
	}
	m.visibleAt = time.Now().Add(timeout)
	return nil
}

// Compile-time check.
var _ interfaces.MessageQueue = (*MemQueue)(nil)
