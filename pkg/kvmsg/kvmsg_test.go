package kvmsg

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_String(t *testing.T) {
	m := New("REQ_ID", "stk", "MSG", "a|b", "EMPTY")
	assert.Equal(t, "REQ_ID=stk|MSG=a/b|EMPTY=", m.String())

	m = m.Add("X", "1")
	assert.Equal(t, "REQ_ID=stk|MSG=a/b|EMPTY=|X=1", m.String())
}

func TestParse(t *testing.T) {
	m := Parse("RTN_CD=0|ERR_MSG=lot on hold=yes|FLAG\x00\x00")

	v, ok := m.Get("RTN_CD")
	assert.True(t, ok)
	assert.Equal(t, "0", v)

	v, _ = m.Get("ERR_MSG")
	assert.Equal(t, "lot on hold=yes", v)

	v, ok = m.Get("FLAG")
	assert.True(t, ok)
	assert.Empty(t, v)

	_, ok = m.Get("MISSING")
	assert.False(t, ok)

	assert.Nil(t, Parse("\x00\r\n"))
}

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := Frame{ID: 99, Name: "LLCR", Body: New("CST_ID", "CST001", "TYPE", "L")}
	require.NoError(t, WriteFrame(&buf, in))
	assert.Equal(t, 14+len("CST_ID=CST001|TYPE=L"), buf.Len())

	out, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), out.ID)
	assert.Equal(t, "LLCR", out.Name)
	assert.Equal(t, in.Body, out.Body)
}

func TestReadFrame_TooLarge(t *testing.T) {
	hdr := make([]byte, 14)
	binary.BigEndian.PutUint32(hdr, MaxBody+1)
	_, err := ReadFrame(bytes.NewReader(hdr))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrame_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Name: "LIPR", Body: New("A", "1")}))
	_, err := ReadFrame(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	assert.Error(t, err)
}
