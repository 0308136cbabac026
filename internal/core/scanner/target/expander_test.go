package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	tests := []struct {
		name  string
		specs []string
		want  []string
	}{
		{"single ip", []string{"192.168.1.1"}, []string{"192.168.1.1"}},
		{"trimmed", []string{"  10.0.0.1 \t"}, []string{"10.0.0.1"}},
		{"cidr /30", []string{"10.0.0.0/30"}, []string{"10.0.0.1", "10.0.0.2"}},
		{"cidr /31", []string{"10.0.0.0/31"}, []string{"10.0.0.0", "10.0.0.1"}},
		{"cidr /32", []string{"10.0.0.7/32"}, []string{"10.0.0.7"}},
		{"cidr host bits set", []string{"10.0.0.3/30"}, []string{"10.0.0.1", "10.0.0.2"}},
		{"range", []string{"10.0.0.1-3"}, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}},
		{"range single", []string{"10.0.0.9-9"}, []string{"10.0.0.9"}},
		{"invalid", []string{"not-an-ip"}, nil},
		{"mixed keeps order", []string{"10.0.0.5", "bogus", "10.0.0.0/30", "10.0.0.5"},
			[]string{"10.0.0.5", "10.0.0.1", "10.0.0.2", "10.0.0.5"}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Expand(tt.specs))
		})
	}
}

func TestExpand_CIDR24(t *testing.T) {
	ips := Expand([]string{"192.168.1.0/24"})
	require.Len(t, ips, 254)
	assert.Equal(t, "192.168.1.1", ips[0])
	assert.Equal(t, "192.168.1.254", ips[253])
}

func TestExpandSpec_Errors(t *testing.T) {
	bad := []string{
		"300.1.1.1",
		"10.0.0.5-2",
		"10.0.0.1-256",
		"10.0.0.1-2-3",
		"10.0.0-5",
		"10.0.0.0/33",
		"::1",
		"fe80::/64",
		"example.com",
	}
	for _, spec := range bad {
		t.Run(spec, func(t *testing.T) {
			ips, err := ExpandSpec(spec)
			assert.ErrorIs(t, err, ErrInvalidTarget)
			assert.Empty(t, ips)
		})
	}

	ips, err := ExpandSpec("   ")
	assert.NoError(t, err)
	assert.Empty(t, ips)
}
