package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockerName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"S?T001", "ST001"},
		{"C?RST01", "CRST01"},
		{"C?RST01XYZ", "CRST01"},
		{"AB", "AB"},
		{"ABC", "AC"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, StockerName(tt.raw))
		})
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting-connect", StateAwaitingConnect.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestExitReason(t *testing.T) {
	assert.Equal(t, "close", exitReason(nil))
	assert.Equal(t, "idle", exitReason(ErrIdle))
	assert.Equal(t, "protocol", exitReason(ErrNotConnected))
	assert.Equal(t, "fatal", exitReason(fatal("boom")))
}
