package ami

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventCollector struct {
	mu     sync.Mutex
	events []*Record
}

func (c *eventCollector) onEvent(rec *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, rec)
}

func (c *eventCollector) snapshot() []*Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Record(nil), c.events...)
}

func waitForEvents(t *testing.T, c *eventCollector, n int) []*Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if evs := c.snapshot(); len(evs) >= n {
			return evs
		}
		time.Sleep(time.Millisecond)
	}
	evs := c.snapshot()
	require.Len(t, evs, n)
	return evs
}

func waitForResult(t *testing.T, w *pendingWaiter) waiterResult {
	t.Helper()
	select {
	case res := <-w.resultCh:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for waiter result")
		return waiterResult{}
	}
}

func TestDispatcherUnsolicitedEventWithNoActionID(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	d.ingest([]byte("Event: PeerStatus\r\nPeer: SIP/1000\r\n\r\n"))

	evs := waitForEvents(t, c, 1)
	v, ok := evs[0].Get("Peer")
	require.True(t, ok)
	assert.Equal(t, "SIP/1000", v)
}

func TestDispatcherActionIDWithNoWaiterIsUnsolicited(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	d.ingest([]byte("Response: Success\r\nActionID: never-registered\r\n\r\n"))

	evs := waitForEvents(t, c, 1)
	v, ok := evs[0].Get("ActionID")
	require.True(t, ok)
	assert.Equal(t, "never-registered", v)
}

func TestDispatcherSingleResponseFulfillsWaiter(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("id-1")
	require.NoError(t, err)

	d.ingest([]byte("Response: Success\r\nActionID: id-1\r\n\r\n"))

	res := waitForResult(t, w)
	require.NoError(t, res.err)
	require.Equal(t, KindSingle, res.reaction.Kind())
	assert.True(t, res.reaction.IsSuccess())
}

func TestDispatcherDuplicateWaiterRegistrationFails(t *testing.T) {
	d := newDispatcher(func(*Record) {})
	defer d.stop()

	_, err := d.openWaiter("dup")
	require.NoError(t, err)

	_, err = d.openWaiter("dup")
	assert.Error(t, err)
}

func TestDispatcherEventListAssembly(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("list-1")
	require.NoError(t, err)

	d.ingest([]byte("Response: Success\r\nEventList: start\r\nActionID: list-1\r\n\r\n"))
	d.ingest([]byte("Event: ParkedCall\r\nExten: 701\r\nActionID: list-1\r\n\r\n"))
	d.ingest([]byte("Event: ParkedCall\r\nExten: 702\r\nActionID: list-1\r\n\r\n"))
	d.ingest([]byte("Event: ParkedCallsComplete\r\nEventList: Complete\r\nActionID: list-1\r\n\r\n"))

	res := waitForResult(t, w)
	require.NoError(t, res.err)
	require.Equal(t, KindEventList, res.reaction.Kind())
	assert.Equal(t, 2, res.reaction.EventCount())
	assert.True(t, res.reaction.IsSuccess())
	assert.NotNil(t, res.reaction.Tail())
}

func TestDispatcherEventListCancelledTerminates(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("list-2")
	require.NoError(t, err)

	d.ingest([]byte("Response: Success\r\nEventList: start\r\nActionID: list-2\r\n\r\n"))
	d.ingest([]byte("EventList: cancelled\r\nActionID: list-2\r\n\r\n"))

	res := waitForResult(t, w)
	require.NoError(t, res.err)
	assert.Equal(t, 0, res.reaction.EventCount())
	assert.NotNil(t, res.reaction.Tail())
}

func TestDispatcherEventListImmediateFailure(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("list-3")
	require.NoError(t, err)

	d.ingest([]byte("Response: Error\r\nEventList: start\r\nActionID: list-3\r\n\r\n"))

	res := waitForResult(t, w)
	require.NoError(t, res.err)
	assert.Equal(t, KindEventList, res.reaction.Kind())
	assert.False(t, res.reaction.IsSuccess())
	assert.Equal(t, 0, res.reaction.EventCount())
	assert.Nil(t, res.reaction.Tail())
}

func TestDispatcherUnsolicitedEventDuringEventListAssembly(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("list-4")
	require.NoError(t, err)

	d.ingest([]byte("Response: Success\r\nEventList: start\r\nActionID: list-4\r\n\r\n"))
	d.ingest([]byte("Event: ParkedCall\r\nExten: 701\r\nActionID: list-4\r\n\r\n"))
	// An unrelated event interleaves mid-list; it must reach subscribers
	// without disturbing the assembly in progress.
	d.ingest([]byte("Event: Newchannel\r\nChannel: SIP/123\r\n\r\n"))
	d.ingest([]byte("Event: ParkedCallsComplete\r\nEventList: Complete\r\nActionID: list-4\r\n\r\n"))

	res := waitForResult(t, w)
	require.NoError(t, res.err)
	assert.Equal(t, 1, res.reaction.EventCount())

	evs := waitForEvents(t, c, 1)
	v, ok := evs[0].Get("Channel")
	require.True(t, ok)
	assert.Equal(t, "SIP/123", v)
}

func TestDispatcherLateResponseAfterFailWaiterGoesToEvents(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("id-late")
	require.NoError(t, err)

	d.failWaiter("id-late", ErrTimeout)
	res := waitForResult(t, w)
	assert.ErrorIs(t, res.err, ErrTimeout)

	// The real response arriving after the timeout finds no waiter and is
	// demoted to the unsolicited path.
	d.ingest([]byte("Response: Success\r\nActionID: id-late\r\n\r\n"))

	evs := waitForEvents(t, c, 1)
	v, ok := evs[0].Get("ActionID")
	require.True(t, ok)
	assert.Equal(t, "id-late", v)
}

func TestDispatcherFailWaiterIsNoopAfterFulfillment(t *testing.T) {
	c := &eventCollector{}
	d := newDispatcher(c.onEvent)
	defer d.stop()

	w, err := d.openWaiter("id-4")
	require.NoError(t, err)

	d.ingest([]byte("Response: Success\r\nActionID: id-4\r\n\r\n"))
	res := waitForResult(t, w)
	require.NoError(t, res.err)

	// The real response already won the race; failing after the fact
	// must not panic or deliver a second value.
	d.failWaiter("id-4", ErrTimeout)
}

func TestDispatcherCloseAllWaitersDeliversErrClosed(t *testing.T) {
	d := newDispatcher(func(*Record) {})

	w, err := d.openWaiter("id-5")
	require.NoError(t, err)

	d.stop()

	res := waitForResult(t, w)
	assert.Nil(t, res.reaction)
	assert.ErrorIs(t, res.err, ErrClosed)
}
