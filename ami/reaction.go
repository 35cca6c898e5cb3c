package ami

import "bytes"

// ReactionKind tags which variant a Reaction holds.
type ReactionKind int

const (
	// KindSingle marks a Reaction built from a single, non-EventList record.
	KindSingle ReactionKind = iota
	// KindEventList marks a Reaction assembled from a head record, zero
	// or more middle records, and (for a successful list) a tail record.
	KindEventList
)

// Reaction is the AMI server's response to an Action: either a single
// record, or a multi-record EventList. The two shapes share one tagged
// struct rather than an interface hierarchy so callers can switch on
// Kind without type assertions.
type Reaction struct {
	kind ReactionKind

	single *Record // set when kind == KindSingle

	head    *Record   // set when kind == KindEventList
	middles []*Record // middle records, arrival order
	tail    *Record   // nil for a list that failed immediately (no middles, no tail)
}

func newSingleReaction(r *Record) *Reaction {
	return &Reaction{kind: KindSingle, single: r}
}

func newEventListReaction(head *Record, middles []*Record, tail *Record) *Reaction {
	return &Reaction{kind: KindEventList, head: head, middles: middles, tail: tail}
}

// Kind reports which variant this Reaction holds.
func (r *Reaction) Kind() ReactionKind {
	return r.kind
}

// IsSuccess reports whether the Response field of the relevant record
// (the record itself for Single, the head record for an EventList)
// equals "Success" or "Goodbye" (the Logoff response, which reports a
// successful logout despite not saying "Success").
func (r *Reaction) IsSuccess() bool {
	var rec *Record
	switch r.kind {
	case KindSingle:
		rec = r.single
	case KindEventList:
		rec = r.head
	}
	if rec == nil {
		return false
	}
	status, ok := rec.Get("Response")
	return ok && isSuccessStatus(status)
}

// Single returns the underlying record and true when this Reaction is a
// Single; otherwise it returns nil, false.
func (r *Reaction) Single() (*Record, bool) {
	if r.kind != KindSingle {
		return nil, false
	}
	return r.single, true
}

// Head returns the lone record of a Single Reaction, or the head record
// of an EventList.
func (r *Reaction) Head() *Record {
	if r.kind == KindSingle {
		return r.single
	}
	return r.head
}

// EventCount returns the number of middle records accumulated in an
// EventList (0 for a Single, and 0 for a list that failed before any
// middles arrived).
func (r *Reaction) EventCount() int {
	if r.kind != KindEventList {
		return 0
	}
	return len(r.middles)
}

// Event returns the middle record at index idx of an EventList, in
// arrival order.
func (r *Reaction) Event(idx int) *Record {
	return r.middles[idx]
}

// Tail returns the terminating record of a completed EventList, or nil
// if the list failed immediately on its head (no tail was ever sent).
func (r *Reaction) Tail() *Record {
	return r.tail
}

// ToWire renders the Reaction back to its wire form: the constituent
// record(s) concatenated in order.
func (r *Reaction) ToWire() []byte {
	var buf bytes.Buffer
	switch r.kind {
	case KindSingle:
		buf.Write(r.single.ToWire())
	case KindEventList:
		buf.Write(r.head.ToWire())
		for _, m := range r.middles {
			buf.Write(m.ToWire())
		}
		if r.tail != nil {
			buf.Write(r.tail.ToWire())
		}
	}
	return buf.Bytes()
}

func isSuccessStatus(status string) bool {
	return status == "Success" || status == "Goodbye"
}

// isListComplete reports whether an EventList field value marks the
// list as finished. Asterisk emits "cancelled" for a canceled list;
// "canceled" is accepted too because AMI documentation varies on the
// spelling.
func isListComplete(eventListVal string) bool {
	return eventListVal == "Complete" || eventListVal == "cancelled" || eventListVal == "canceled"
}

func recordIsSuccess(r *Record) bool {
	status, ok := r.Get("Response")
	return ok && isSuccessStatus(status)
}
