package ami

import (
	"bytes"
	"sync"
)

// eom is the AMI message terminator: an empty line following the last
// field of a message.
const eom = lineTerm + lineTerm

// streamParser turns an unbounded sequence of arbitrary-sized byte
// chunks into a sequence of complete AMI messages, plus, exactly once,
// the server's greeting version line. feed may be called from any
// goroutine (the reader); the actual parsing work happens serialized on
// a dedicated worker goroutine so a slow downstream callback can never
// make feed block the reader.
type streamParser struct {
	mu      sync.Mutex
	cond    *sync.Cond
	chunks  [][]byte
	running bool
	wg      sync.WaitGroup

	firstChunkSeen bool
	pending        []byte

	onVersion func(string)
	onMessage func([]byte)
}

func newStreamParser(onVersion func(string), onMessage func([]byte)) *streamParser {
	p := &streamParser{
		running:   true,
		onVersion: onVersion,
		onMessage: onMessage,
	}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(1)
	go p.workLoop()
	return p
}

// feed enqueues buf for parsing. It never blocks on message emission.
func (p *streamParser) feed(buf []byte) {
	p.mu.Lock()
	p.chunks = append(p.chunks, buf)
	p.mu.Unlock()
	p.cond.Signal()
}

// stop signals the worker to drain any queued chunks and exit, then
// waits for it to finish. Any byte tail left in pending without a
// terminator is discarded.
func (p *streamParser) stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

func (p *streamParser) workLoop() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.chunks) == 0 && p.running {
			p.cond.Wait()
		}
		chunks := p.chunks
		p.chunks = nil
		running := p.running
		p.mu.Unlock()

		for _, chunk := range chunks {
			p.processChunk(chunk)
		}
		if !running {
			return
		}
	}
}

func (p *streamParser) processChunk(chunk []byte) {
	if !p.firstChunkSeen {
		// The greeting may itself arrive split across several chunks
		// (e.g. a reader that hands bytes along one at a time), so hold
		// everything in pending until a full line shows up rather than
		// only checking the very first chunk.
		p.pending = append(p.pending, chunk...)

		idx := bytes.Index(p.pending, []byte(lineTerm))
		if idx == -1 {
			return
		}
		p.firstChunkSeen = true
		p.onVersion(string(p.pending[:idx]))

		rest := p.pending[idx+len(lineTerm):]
		remaining := make([]byte, len(rest))
		copy(remaining, rest)
		p.pending = remaining

		if len(p.pending) == 0 {
			return
		}
		// The remainder may already contain one or more complete
		// messages, so it's processed by the ordinary framing logic.
		p.drainPending(0)
		return
	}

	// Scan optimization: the terminator can straddle the boundary
	// between pending and the newly appended chunk, so start the search
	// at most len(eom)-1 bytes before that boundary rather than from the
	// beginning of pending every time. This only changes how much of the
	// buffer gets re-scanned, never what gets emitted.
	backoff := len(eom) - 1
	scanFrom := 0
	if len(p.pending) > backoff {
		scanFrom = len(p.pending) - backoff
	}
	p.pending = append(p.pending, chunk...)
	p.drainPending(scanFrom)
}

func (p *streamParser) drainPending(scanFrom int) {
	for {
		rel := bytes.Index(p.pending[scanFrom:], []byte(eom))
		if rel == -1 {
			break
		}
		end := scanFrom + rel + len(eom)

		msg := make([]byte, end)
		copy(msg, p.pending[:end])
		p.onMessage(msg)

		p.pending = p.pending[end:]
		scanFrom = 0
	}
}
