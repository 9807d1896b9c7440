package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Queue of events posted to the kernel.
 *
 * Description:	Radio drivers (possibly from interrupt-like goroutines)
 *		and RTC alarms append here.  The kernel is the only reader
 *		and drains the whole queue at the top of every loop pass,
 *		so a completion always runs before the next dispatch.
 *
 *		Posting never blocks and never takes the kernel mutex.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
)

type eventQueue struct {
	mutex sync.Mutex /* Critical section for updating the queue. */
	items []Event
	wake  chan struct{} /* Notify whoever runs the kernel that something arrived. */

	newCount    int
	deleteCount int
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		wake: make(chan struct{}, 1),
	}
}

func (q *eventQueue) post(ev Event) {
	q.mutex.Lock()
	q.items = append(q.items, ev)
	q.newCount++
	q.mutex.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
		// A wakeup is already pending.
	}
}

func (q *eventQueue) take() []Event {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	var out = q.items
	q.items = nil
	q.deleteCount += len(out)

	return out
}

func (q *eventQueue) pending() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.items)
}

func (q *eventQueue) counts() (int, int) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.newCount, q.deleteCount
}
