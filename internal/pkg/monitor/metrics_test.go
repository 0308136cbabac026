package monitor

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLimitSufficient(t *testing.T) {
	assert.True(t, FileLimit{Soft: 1024, Required: 132}.Sufficient())
	assert.False(t, FileLimit{Soft: 256, Required: 1032}.Sufficient())
}

func TestCheckFileLimit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("rlimit is only reported on linux")
	}
	limit, err := CheckFileLimit(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10+fdReserve), limit.Required)
	assert.NotZero(t, limit.Soft)
}

func TestGetHostInfo(t *testing.T) {
	info, err := GetHostInfo()
	require.NoError(t, err)
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.Positive(t, info.CPUCores)
}
