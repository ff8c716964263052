package memory

import (
	"fmt"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// MemoryUsage is an enum passed to Allocator.Commit and its resource-binding
// variants to indicate which direction data flows through the requested
// memory, allowing the Allocator to decide what memory type to use.
type MemoryUsage uint32

const (
	// MemoryUsageDeviceLocal requests memory the device accesses at full speed.
	// Memory committed with this usage is not guaranteed to be host-visible, so
	// it may not be mappable.
	MemoryUsageDeviceLocal MemoryUsage = iota
	// MemoryUsageUpload requests host-visible, host-coherent memory, intended
	// for streaming data from the host to the device.
	MemoryUsageUpload
	// MemoryUsageDownload requests host-cached memory on top of what
	// MemoryUsageUpload requests, intended for reading data back from the
	// device at reasonable speeds.
	MemoryUsageDownload
)

var memoryUsageMapping = map[MemoryUsage]string{
	MemoryUsageDeviceLocal: "MemoryUsageDeviceLocal",
	MemoryUsageUpload:      "MemoryUsageUpload",
	MemoryUsageDownload:    "MemoryUsageDownload",
}

func (u MemoryUsage) String() string {
	str, ok := memoryUsageMapping[u]
	if !ok {
		return "unknown"
	}
	return str
}

// IsHostVisible reports whether commits made with this usage can be mapped
// into host memory.
func (u MemoryUsage) IsHostVisible() bool {
	switch u {
	case MemoryUsageDeviceLocal:
		return false
	case MemoryUsageUpload, MemoryUsageDownload:
		return true
	}

	panic(fmt.Sprintf("invalid memory usage: %d", u))
}

// propertyFlags returns the ideal memory property flags for this usage,
// before any of them are found to be unavailable and relaxed away.
func (u MemoryUsage) propertyFlags() core1_0.MemoryPropertyFlags {
	switch u {
	case MemoryUsageDeviceLocal:
		return core1_0.MemoryPropertyDeviceLocal
	case MemoryUsageUpload:
		return core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent
	case MemoryUsageDownload:
		return core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent |
			core1_0.MemoryPropertyHostCached
	}

	panic(fmt.Sprintf("invalid memory usage: %d", u))
}
