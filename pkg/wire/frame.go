package wire

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMalformed is returned when a frame's declared length does not
	// match its type's fixed size.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownType is returned for a type byte outside the closed set.
	// It satisfies errors.Is(err, ErrMalformed).
	ErrUnknownType = fmt.Errorf("%w: unknown message type", ErrMalformed)
)

// Encode renders m as a complete frame, header included.
func Encode(m Message) []byte {
	size := m.Size()
	b := make([]byte, size)
	putU16(b, 0, uint16(size))
	b[2] = byte(m.MsgType())
	m.marshal(b)
	return b
}

// DecodeRequest parses a complete request frame.
func DecodeRequest(b []byte) (Message, error) {
	l, err := check(b, MsgType.RequestSize)
	if err != nil {
		return nil, err
	}
	m := l.newReq(MsgType(b[2]))
	m.unmarshal(b)
	return m, nil
}

// DecodeReply parses a complete reply frame.
func DecodeReply(b []byte) (Message, error) {
	l, err := check(b, MsgType.ReplySize)
	if err != nil {
		return nil, err
	}
	m := l.newReply(MsgType(b[2]))
	m.unmarshal(b)
	return m, nil
}

func check(b []byte, size func(MsgType) int) (layout, error) {
	if len(b) < HeaderSize {
		return layout{}, fmt.Errorf("%w: %d byte frame", ErrMalformed, len(b))
	}
	t := MsgType(b[2])
	l, ok := layouts[t]
	if !ok {
		return layout{}, fmt.Errorf("%w %d", ErrUnknownType, uint8(t))
	}
	want := size(t)
	if declared := FrameLen(b); declared != want || len(b) != want {
		return layout{}, fmt.Errorf("%w: %s declared %d bytes, got %d, want %d",
			ErrMalformed, t, declared, len(b), want)
	}
	return l, nil
}

// ReadRequest reads one request frame from r. The header is validated
// before the body is read so an unknown type or a bad length never
// consumes more input than the header.
func ReadRequest(r io.Reader) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	t := MsgType(hdr[2])
	if !t.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownType, uint8(t))
	}
	want := t.RequestSize()
	if declared := FrameLen(hdr[:]); declared != want {
		return nil, fmt.Errorf("%w: %s declared %d bytes, want %d", ErrMalformed, t, declared, want)
	}

	b := make([]byte, want)
	copy(b, hdr[:])
	if _, err := io.ReadFull(r, b[HeaderSize:]); err != nil {
		return nil, fmt.Errorf("short %s body: %w", t, err)
	}
	return b, nil
}
