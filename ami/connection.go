package ami

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultReadBufSize = 8192
	defaultReadTimeout = 200 * time.Millisecond
)

// EventCallback receives unsolicited events and every record whose
// ActionID has no live waiter, in arrival order.
type EventCallback func(*Record)

// Connection is a live AMI session: a dialed TCP channel feeding a
// stream parser feeding a dispatcher, plus the reader goroutine that
// pumps bytes off the wire. It owns all four and tears them down in
// reverse data-flow order on Close.
type Connection struct {
	channel    *tcpChannel
	parser     *streamParser
	dispatcher *dispatcher

	readerStop chan struct{}
	readerDone chan struct{}

	versionMu sync.RWMutex
	version   string

	subsMu sync.Mutex
	subs   map[string]EventCallback

	closeOnce sync.Once
	logger    Logger
}

// Option configures a Connection at Dial time.
type Option func(*Connection)

// WithLogger overrides the default logger used for connection
// lifecycle and dispatch diagnostics.
func WithLogger(l Logger) Option {
	return func(c *Connection) {
		if l != nil {
			c.logger = l
		}
	}
}

// Dial connects to an AMI listener at hostname:port and starts reading
// immediately. The returned Connection has not logged in; call Invoke
// with NewLogin (or NewChallenge/ChallengeResponse for MD5 auth) before
// issuing any other action.
func Dial(hostname string, port int, opts ...Option) (*Connection, error) {
	channel, err := dialTCPChannel(hostname, port)
	if err != nil {
		return nil, err
	}

	c := &Connection{
		channel:    channel,
		readerStop: make(chan struct{}),
		readerDone: make(chan struct{}),
		subs:       make(map[string]EventCallback),
		logger:     defaultLogger,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.dispatcher = newDispatcher(c.fanout)
	c.parser = newStreamParser(c.setVersion, c.dispatcher.ingest)

	go c.readLoop()

	return c, nil
}

func (c *Connection) setVersion(v string) {
	c.versionMu.Lock()
	c.version = v
	c.versionMu.Unlock()
	c.logger.Printf("ami: connected, server version %q", v)
}

// AMIVersion returns the greeting line sent by the server at connect
// time, or "" if it hasn't arrived yet.
func (c *Connection) AMIVersion() string {
	c.versionMu.RLock()
	defer c.versionMu.RUnlock()
	return c.version
}

func (c *Connection) readLoop() {
	defer close(c.readerDone)
	for {
		select {
		case <-c.readerStop:
			return
		default:
		}

		buf, err := c.channel.read(defaultReadBufSize, defaultReadTimeout)
		if err != nil {
			c.logger.Printf("ami: read error: %v", err)
			return
		}
		if len(buf) == 0 {
			continue
		}
		c.parser.feed(buf)
	}
}

// Invoke writes action to the wire and blocks until its Reaction
// arrives or the Connection is closed (in which case it returns
// ErrClosed). The waiter is registered before the action is written so
// a very fast response can never race ahead of it.
func (c *Connection) Invoke(action *Action) (*Reaction, error) {
	waiter, err := c.sendWithWaiter(action)
	if err != nil {
		return nil, err
	}

	result := <-waiter.resultCh
	return result.reaction, result.err
}

// InvokeWithTimeout is Invoke with a deadline. On timeout the waiter is
// failed with ErrTimeout and then observed, so exactly one delivery
// path resolves the call; the response, if it eventually arrives, is
// instead delivered through Subscribe as an unsolicited event.
func (c *Connection) InvokeWithTimeout(action *Action, timeout time.Duration) (*Reaction, error) {
	waiter, err := c.sendWithWaiter(action)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-waiter.resultCh:
		return result.reaction, result.err
	case <-timer.C:
		c.dispatcher.failWaiter(action.ActionID(), ErrTimeout)
		result := <-waiter.resultCh
		return result.reaction, result.err
	}
}

func (c *Connection) sendWithWaiter(action *Action) (*pendingWaiter, error) {
	waiter, err := c.dispatcher.openWaiter(action.ActionID())
	if err != nil {
		return nil, err
	}

	if err := c.channel.write(action.ToWire()); err != nil {
		c.dispatcher.failWaiter(action.ActionID(), err)
		return nil, err
	}
	return waiter, nil
}

// AsyncInvoke writes action to the wire without waiting for its
// Reaction; the eventual response, success or failure, arrives through
// Subscribe instead, since no waiter is ever registered for it.
func (c *Connection) AsyncInvoke(action *Action) error {
	return c.channel.write(action.ToWire())
}

// Subscribe registers cb to receive every unsolicited event (and any
// response delivered with no matching waiter). It returns a key for a
// later Unsubscribe call.
func (c *Connection) Subscribe(cb EventCallback) string {
	key := uuid.NewString()
	c.subsMu.Lock()
	c.subs[key] = cb
	c.subsMu.Unlock()
	return key
}

// Unsubscribe removes a callback previously registered with Subscribe.
func (c *Connection) Unsubscribe(key string) {
	c.subsMu.Lock()
	delete(c.subs, key)
	c.subsMu.Unlock()
}

// fanout is the dispatcher's onEvent callback. It snapshots the
// subscriber table before invoking any callback so a callback that
// calls Subscribe or Unsubscribe never deadlocks or races the table
// it's being iterated from.
func (c *Connection) fanout(rec *Record) {
	c.subsMu.Lock()
	cbs := make([]EventCallback, 0, len(c.subs))
	for _, cb := range c.subs {
		cbs = append(cbs, cb)
	}
	c.subsMu.Unlock()

	for _, cb := range cbs {
		cb(rec)
	}
}

// Close tears the connection down in reverse data-flow order: stop
// accepting new bytes, then stop turning bytes into messages, then fail
// any caller still blocked in Invoke, and finally close the socket.
// Idempotent.
func (c *Connection) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		close(c.readerStop)
		<-c.readerDone

		c.parser.stop()
		c.dispatcher.stop()

		closeErr = c.channel.close()
	})
	return closeErr
}
