package ami

import (
	"fmt"
	"sync"
)

// waiterResult is what a pendingWaiter is fulfilled with: exactly one
// of (reaction, nil) on success or (nil, err) on timeout/forced-close.
type waiterResult struct {
	reaction *Reaction
	err      error
}

// pendingWaiter is a one-shot handle awaiting the Reaction for a single
// ActionID. resultCh is buffered to depth 1 so the single fulfilling
// send never blocks, even if nothing ever reads it (e.g. the caller
// already gave up).
type pendingWaiter struct {
	resultCh chan waiterResult
}

func newPendingWaiter() *pendingWaiter {
	return &pendingWaiter{resultCh: make(chan waiterResult, 1)}
}

func (w *pendingWaiter) fulfill(reaction *Reaction, err error) {
	w.resultCh <- waiterResult{reaction: reaction, err: err}
}

// eventListPartial accumulates the middle records of an EventList whose
// head has already been seen but whose tail hasn't arrived yet.
type eventListPartial struct {
	head    *Record
	middles []*Record
}

// dispatcher turns a stream of framed AMI messages into fulfilled
// waiters (for correlated responses) and a fanout of unsolicited events
// (for everything else). Framed messages are ingested from any
// goroutine (the stream parser) but processed serially on one worker
// goroutine, so correlation state never needs more than the waiter
// lock.
type dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	running bool
	wg      sync.WaitGroup

	waitersMu sync.Mutex
	waiters   map[string]*pendingWaiter
	partials  map[string]*eventListPartial

	onEvent func(*Record)
}

func newDispatcher(onEvent func(*Record)) *dispatcher {
	d := &dispatcher{
		running:  true,
		waiters:  make(map[string]*pendingWaiter),
		partials: make(map[string]*eventListPartial),
		onEvent:  onEvent,
	}
	d.cond = sync.NewCond(&d.mu)
	d.wg.Add(1)
	go d.workLoop()
	return d
}

// ingest hands a fully framed message to the dispatcher. It never
// blocks on processing.
func (d *dispatcher) ingest(msg []byte) {
	d.mu.Lock()
	d.queue = append(d.queue, msg)
	d.mu.Unlock()
	d.cond.Signal()
}

// stop drains any queued messages, then closes every remaining waiter
// with ErrClosed so no caller of Invoke is left blocked forever.
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	d.cond.Broadcast()
	d.wg.Wait()

	d.closeAllWaiters()
}

func (d *dispatcher) workLoop() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && d.running {
			d.cond.Wait()
		}
		queue := d.queue
		d.queue = nil
		running := d.running
		d.mu.Unlock()

		for _, raw := range queue {
			d.process(raw)
		}
		if !running {
			return
		}
	}
}

func (d *dispatcher) process(raw []byte) {
	rec := ParseRecord(raw)

	actionID, hasID := rec.Get("ActionID")
	if !hasID {
		d.onEvent(rec) // no correlation token at all: always unsolicited
		return
	}

	d.waitersMu.Lock()

	w, hasWaiter := d.waiters[actionID]
	if !hasWaiter {
		d.waitersMu.Unlock()
		// Case A: an ActionID with no live waiter (none was ever opened,
		// it already timed out, or it was explicitly unregistered) is
		// treated as unsolicited rather than dropped.
		d.onEvent(rec)
		return
	}

	partial, hasPartial := d.partials[actionID]
	elVal, hasEventList := rec.Get("EventList")

	switch {
	case !hasPartial && !hasEventList:
		// Case B: plain single-record response.
		delete(d.waiters, actionID)
		d.waitersMu.Unlock()
		w.fulfill(newSingleReaction(rec), nil)

	case !hasPartial && hasEventList:
		if recordIsSuccess(rec) {
			// Case C: head of a new EventList; keep the waiter open.
			d.partials[actionID] = &eventListPartial{head: rec}
			d.waitersMu.Unlock()
		} else {
			// Case D: head reports failure; resolve immediately with no
			// middles or tail.
			delete(d.waiters, actionID)
			d.waitersMu.Unlock()
			w.fulfill(newEventListReaction(rec, nil, nil), nil)
		}

	case hasPartial && isListComplete(elVal):
		// Case F: tail record; the list is complete.
		delete(d.waiters, actionID)
		delete(d.partials, actionID)
		d.waitersMu.Unlock()
		w.fulfill(newEventListReaction(partial.head, partial.middles, rec), nil)

	default:
		// Case E: middle record (elVal missing or not a completion value).
		partial.middles = append(partial.middles, rec)
		d.waitersMu.Unlock()
	}
}

// openWaiter registers a waiter for actionID. Registration must happen
// before the action is written to the socket so the response can never
// race ahead of the waiter. Registering a second waiter for an ActionID
// that already has a live one is a programming error and fails
// deterministically rather than silently overwriting the first.
func (d *dispatcher) openWaiter(actionID string) (*pendingWaiter, error) {
	d.waitersMu.Lock()
	defer d.waitersMu.Unlock()

	if _, exists := d.waiters[actionID]; exists {
		return nil, fmt.Errorf("ami: a waiter is already open for action id %s", actionID)
	}

	w := newPendingWaiter()
	d.waiters[actionID] = w
	return w, nil
}

// failWaiter forces the waiter for actionID closed with err, if one is
// still open. If the real response already arrived and resolved (and
// removed) the waiter, this is a no-op — the caller reading resultCh
// still observes exactly the one delivery that happened first.
func (d *dispatcher) failWaiter(actionID string, err error) {
	d.waitersMu.Lock()
	w, ok := d.waiters[actionID]
	if ok {
		delete(d.waiters, actionID)
	}
	delete(d.partials, actionID)
	d.waitersMu.Unlock()

	if ok {
		w.fulfill(nil, err)
	}
}

func (d *dispatcher) closeAllWaiters() {
	d.waitersMu.Lock()
	waiters := d.waiters
	d.waiters = make(map[string]*pendingWaiter)
	d.partials = make(map[string]*eventListPartial)
	d.waitersMu.Unlock()

	for _, w := range waiters {
		w.fulfill(nil, ErrClosed)
	}
}
