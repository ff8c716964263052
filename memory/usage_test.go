package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestMemoryUsagePropertyFlags(t *testing.T) {
	require.Equal(t, core1_0.MemoryPropertyDeviceLocal, MemoryUsageDeviceLocal.propertyFlags())
	require.Equal(t,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent,
		MemoryUsageUpload.propertyFlags())
	require.Equal(t,
		core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent|core1_0.MemoryPropertyHostCached,
		MemoryUsageDownload.propertyFlags())
}

func TestMemoryUsageIsHostVisible(t *testing.T) {
	require.False(t, MemoryUsageDeviceLocal.IsHostVisible())
	require.True(t, MemoryUsageUpload.IsHostVisible())
	require.True(t, MemoryUsageDownload.IsHostVisible())
}

func TestMemoryUsageString(t *testing.T) {
	require.Equal(t, "MemoryUsageDeviceLocal", MemoryUsageDeviceLocal.String())
	require.Equal(t, "MemoryUsageUpload", MemoryUsageUpload.String())
	require.Equal(t, "MemoryUsageDownload", MemoryUsageDownload.String())
	require.Equal(t, "unknown", MemoryUsage(99).String())
}
