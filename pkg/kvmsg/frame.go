package kvmsg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// frame header: body length (4), message id (4), message name (6).
const (
	frameHeaderSize = 14

	// MaxBody bounds the body a peer may announce.
	MaxBody = 64 << 10
)

// ErrFrameTooLarge is returned when a peer announces a body over MaxBody.
var ErrFrameTooLarge = errors.New("kvmsg: frame too large")

// Frame is one named message exchanged with a text-protocol collaborator.
type Frame struct {
	ID   uint32
	Name string
	Body Message
}

// WriteFrame writes f as a single buffer.
func WriteFrame(w io.Writer, f Frame) error {
	body := f.Body.String()
	if len(body) > MaxBody {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(body))
	}
	buf := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:], uint32(len(body)))
	binary.BigEndian.PutUint32(buf[4:], f.ID)
	copy(buf[8:frameHeaderSize], fmt.Sprintf("%-6.6s", f.Name))
	copy(buf[frameHeaderSize:], body)

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return io.ErrShortWrite
	}
	return nil
}

// ReadFrame reads one frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	size := binary.BigEndian.Uint32(hdr[0:])
	if size > MaxBody {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}
	return Frame{
		ID:   binary.BigEndian.Uint32(hdr[4:]),
		Name: strings.TrimRight(string(hdr[8:frameHeaderSize]), " \x00"),
		Body: Parse(string(body)),
	}, nil
}
