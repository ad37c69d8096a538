package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() []any {
	status := []any{"DGD 1.6.4", 1700000000, 1690000000, 3725}
	for i := 4; i < 24; i++ {
		status = append(status, i*1000)
	}
	return append(status, []any{}, []any{6047}, []any{6048})
}

func TestDecodeServerStatus(t *testing.T) {
	s, err := DecodeServerStatus(sampleStatus())
	require.NoError(t, err)

	assert.Equal(t, "DGD 1.6.4", s.Version)
	assert.Equal(t, int64(1700000000), s.StartTime.Unix())
	assert.Equal(t, time.Hour+2*time.Minute+5*time.Second, s.Uptime)
	assert.Equal(t, 4000, s.SwapSize)
	assert.Equal(t, 23000, s.RemainingTicks)
	assert.Equal(t, []any{6047}, s.TelnetPorts)

	fields := s.Fields()
	require.Len(t, fields, statusFieldCount)
	assert.Equal(t, "Uptime", fields[3].Label)
	assert.Equal(t, "01:02:05", fields[3].Value)
	assert.Equal(t, "4,000", fields[4].Value)
}

func TestDecodeServerStatusRejectsBadInput(t *testing.T) {
	_, err := DecodeServerStatus("nope")
	assert.Error(t, err)

	_, err = DecodeServerStatus([]any{"DGD"})
	assert.Error(t, err)

	bad := sampleStatus()
	bad[5] = "x"
	_, err = DecodeServerStatus(bad)
	assert.Error(t, err)
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "0", groupThousands(0))
	assert.Equal(t, "999", groupThousands(999))
	assert.Equal(t, "1,000", groupThousands(1000))
	assert.Equal(t, "-1,234,567", groupThousands(-1234567))
}
