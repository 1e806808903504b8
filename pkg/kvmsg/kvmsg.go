// Package kvmsg encodes the pipe-delimited KEY=VALUE text messages used by
// the lot-tracking service, the alert service and protocol log records.
//
//	REQ_ID=stk|MSG_CODE=MC06|RECEIVER=OPS01|MSG=...
//
// Keys are kept in insertion order. Values may not contain '|'; Encode
// replaces it with '/'.
package kvmsg

import "strings"

const (
	fieldSep = "|"
	kvSep    = "="
)

// Field is one KEY=VALUE pair.
type Field struct {
	Key   string
	Value string
}

// Message is an ordered list of fields.
type Message []Field

// New builds a message from alternating keys and values. A trailing key
// without a value is given an empty value.
func New(kv ...string) Message {
	m := make(Message, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		f := Field{Key: kv[i]}
		if i+1 < len(kv) {
			f.Value = kv[i+1]
		}
		m = append(m, f)
	}
	return m
}

// Add appends a field and returns the message.
func (m Message) Add(key, value string) Message {
	return append(m, Field{Key: key, Value: value})
}

// Get returns the value of the first field named key.
func (m Message) Get(key string) (string, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// String renders the message in wire form.
func (m Message) String() string {
	var b strings.Builder
	for i, f := range m {
		if i > 0 {
			b.WriteString(fieldSep)
		}
		b.WriteString(f.Key)
		b.WriteString(kvSep)
		b.WriteString(strings.ReplaceAll(f.Value, fieldSep, "/"))
	}
	return b.String()
}

// Parse reads a message in wire form. Surrounding whitespace and NUL
// padding are ignored; a segment without '=' becomes a key with an empty
// value.
func Parse(s string) Message {
	s = strings.TrimRight(s, "\x00\r\n ")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, fieldSep)
	m := make(Message, 0, len(parts))
	for _, p := range parts {
		key, value, _ := strings.Cut(p, kvSep)
		m = append(m, Field{Key: strings.TrimSpace(key), Value: value})
	}
	return m
}
