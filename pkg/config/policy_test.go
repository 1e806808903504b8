package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Interlocked(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		stocker  string
		barcode  string
		cassette string
		want     bool
	}{
		{"asml cassette", "CRST01", "RA0001", "ASML-POD", true},
		{"ry barcode", "CRST01", "RY0001", "", true},
		{"rw barcode", "CRST01", "RW0001", "POD", true},
		{"plain reticle", "CRST01", "RA0001", "NIKON", false},
		{"other stocker", "ST0001", "RY0001", "ASML", false},
		{"non reticle barcode", "CRST01", "AB1234", "ASML", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Interlocked(tt.stocker, tt.barcode, tt.cassette))
		})
	}
}

func TestPolicy_PodConventions(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.PodStocker("CPST27"))
	assert.False(t, p.PodStocker("ST001"))
	assert.True(t, p.RemapPodID("CPST27", "S12345"))
	assert.False(t, p.RemapPodID("CPST27", "A12345"))
	assert.False(t, p.RemapPodID("ST001", "S12345"))

	assert.Equal(t, "ZZEMPTY-AB1234", p.EmptyLogical("AB1234"))
	assert.True(t, p.IsEmptyLogical("ZZEMPTY-AB1234"))
	assert.False(t, p.IsEmptyLogical("LOT0007"))
}

func TestPolicy_PadLogical(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, "RET-01        ", p.PadLogical("RA0001", "RET-01"))
	assert.Len(t, p.PadLogical("RA0001", "RET-01"), 14)
	assert.Equal(t, "", p.PadLogical("RA0001", ""))
	assert.Equal(t, "LOT0007", p.PadLogical("AB1234", "LOT0007"))
	assert.Equal(t, "RETICLE-NAME-LONGER", p.PadLogical("RA0001", "RETICLE-NAME-LONGER"))
}
