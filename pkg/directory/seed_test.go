package directory

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
stockers:
  - name: ST001A
    type: ST01
ports:
  - name: PORT-A
    sensor_id: IRT-0001
    direction: I
    stocker: ST001A
carriers:
  - id: CST001
    logical_id: LOT001
    clean_days: 14
lots:
  - id: LOT001
    quantity: 25
    priority: 9
    operation: "1100"
`

func TestReadSeed(t *testing.T) {
	s, err := ReadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, s.Stockers, 1)
	assert.Equal(t, "ST01", s.Stockers[0].Code)
	assert.Equal(t, DirInput, s.Ports[0].Direction)
	assert.Equal(t, 14, s.Carriers[0].CleanDays)
	assert.Equal(t, 9, s.Lots[0].Priority)
}

func TestReadSeed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad stocker type", "stockers:\n  - name: X\n    type: ST07\n"},
		{"bad direction", "ports:\n  - name: P\n    direction: Q\n"},
		{"duplicate logical", "carriers:\n  - id: A\n    logical_id: L\n  - id: B\n    logical_id: L\n"},
		{"unknown field", "stockerz: []\n"},
		{"incomplete tag", "tags:\n  - barcode: R1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSeed(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestSeed_WriteYAMLRoundTrip(t *testing.T) {
	in := testSeed()

	var buf bytes.Buffer
	require.NoError(t, in.WriteYAML(&buf))

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))

	out, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, in.Ports, out.Ports)
	assert.Equal(t, in.Carriers, out.Carriers)
	assert.True(t, in.Tags[0].Created.Equal(out.Tags[0].Created))
}
