package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToInet(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
		want  string
		bits  int
	}{
		{addr: "", valid: false},
		{addr: "not-an-ip", valid: false},
		{addr: "203.0.113.7", valid: true, want: "203.0.113.7", bits: 32},
		{addr: "203.0.113.7:51234", valid: true, want: "203.0.113.7", bits: 32},
		{addr: "2001:db8::1", valid: true, want: "2001:db8::1", bits: 128},
		{addr: "[2001:db8::1]:443", valid: true, want: "2001:db8::1", bits: 128},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			inet := toInet(tt.addr)
			require.Equal(t, tt.valid, inet.Valid)
			if !tt.valid {
				return
			}
			assert.Equal(t, tt.want, inet.IPNet.IP.String())
			ones, total := inet.IPNet.Mask.Size()
			assert.Equal(t, tt.bits, ones)
			assert.Equal(t, tt.bits, total)
		})
	}
}

func TestToNullRawMessage(t *testing.T) {
	empty, err := toNullRawMessage(nil)
	require.NoError(t, err)
	assert.False(t, empty.Valid)

	msg, err := toNullRawMessage(map[string]any{"reason": "timeout"})
	require.NoError(t, err)
	assert.True(t, msg.Valid)
	assert.JSONEq(t, `{"reason":"timeout"}`, string(msg.RawMessage))
}
