package ami

import (
	"bytes"
	"fmt"
)

const (
	lineTerm = "\r\n"
	kvSep    = ": "
)

// Record is an ordered collection of AMI key/value pairs, the atomic
// payload type the wire protocol is built from. Two construction modes
// exist: ParseRecord builds one from a raw message buffer, recording
// every observed key in arrival order; NewRecord (used by Action)
// builds one from a fixed set of allowed keys, rejecting writes for any
// key outside that schema.
//
// A Record is not safe for concurrent use. Parsed records are
// effectively immutable after construction; records built for outbound
// actions are expected to be populated by a single goroutine before
// being handed to Connection.
type Record struct {
	order   []string
	values  map[string]string
	allowed map[string]struct{} // nil when unrestricted (parse mode)
}

// NewRecord constructs a Record restricted to allowedKeys: Set fails for
// any key not in this list. Passing no keys produces a record that
// accepts no fields at all, which is valid for actions like Ping that
// carry no body.
func NewRecord(allowedKeys ...string) *Record {
	order := make([]string, len(allowedKeys))
	copy(order, allowedKeys)

	allowed := make(map[string]struct{}, len(allowedKeys))
	for _, k := range allowedKeys {
		allowed[k] = struct{}{}
	}

	return &Record{
		order:   order,
		values:  make(map[string]string),
		allowed: allowed,
	}
}

// ParseRecord builds a Record from the key/value lines of an AMI
// message buffer (without the trailing empty-line terminator, though
// its presence does no harm). Parsing never fails: a truncated or
// malformed trailing field is simply dropped, and the caller receives
// whatever complete fields preceded it, per the core's policy of never
// raising a protocol error for malformed input.
func ParseRecord(buf []byte) *Record {
	r := &Record{values: make(map[string]string)}

	s := buf
	for len(s) > 0 {
		sepIdx := bytes.Index(s, []byte(kvSep))
		if sepIdx == -1 {
			break
		}
		key := string(s[:sepIdx])

		valStart := sepIdx + len(kvSep)
		eorIdx := bytes.Index(s[valStart:], []byte(lineTerm))
		if eorIdx == -1 {
			break
		}
		val := string(s[valStart : valStart+eorIdx])

		r.order = append(r.order, key)
		r.values[key] = val // duplicate keys: last value wins in the lookup

		s = s[valStart+eorIdx+len(lineTerm):]
	}

	return r
}

// Has reports whether key is part of this record (an observed key for a
// parsed record, or a schema key for a restricted one).
func (r *Record) Has(key string) bool {
	for _, k := range r.order {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value bound to key and whether key is present.
func (r *Record) Get(key string) (string, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Set assigns val to key. For a restricted record (one built with
// NewRecord(allowedKeys...)), Set fails if key is not part of the
// schema. For a parsed/unrestricted record, Set adds key to the
// ordering the first time it is used.
func (r *Record) Set(key, val string) error {
	if r.allowed != nil {
		if _, ok := r.allowed[key]; !ok {
			return fmt.Errorf("ami: key %q is not part of this action's schema", key)
		}
		r.values[key] = val
		return nil
	}

	if _, exists := r.values[key]; !exists {
		r.order = append(r.order, key)
	}
	r.values[key] = val
	return nil
}

// Count returns the number of keys in the record's ordering (duplicate
// occurrences in a parsed record each count).
func (r *Record) Count() int {
	return len(r.order)
}

// Keys returns a copy of the record's key ordering.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.order))
	copy(keys, r.order)
	return keys
}

// ToWire renders the record as "<key>: <value>\r\n" lines in insertion
// order, terminated by an empty line. A key with no bound value (only
// possible for a restricted record whose schema key was never Set)
// serializes with an empty value. Parsing the output of ToWire and
// calling ToWire again reproduces the same bytes whenever keys are
// unique.
func (r *Record) ToWire() []byte {
	var buf bytes.Buffer
	for _, key := range r.order {
		buf.WriteString(key)
		buf.WriteString(kvSep)
		buf.WriteString(r.values[key]) // zero value "" if never Set
		buf.WriteString(lineTerm)
	}
	buf.WriteString(lineTerm)
	return buf.Bytes()
}
