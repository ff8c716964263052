package memory

import (
	"github.com/vkngwrapper/arsenal/memutils"
)

// allocationChunkSizes is the ascending table of preferred device memory
// allocation sizes, from 4Mb to 128Mb. Keeping coarse allocations to a small
// set of driver-friendly sizes bounds how many the device ends up managing.
var allocationChunkSizes = [...]int{
	0x1000 << 10,
	0x1400 << 10,
	0x1800 << 10,
	0x1c00 << 10,
	0x2000 << 10,
	0x3200 << 10,
	0x4000 << 10,
	0x6000 << 10,
	0x8000 << 10,
	0xa000 << 10,
	0x10000 << 10,
	0x18000 << 10,
	0x20000 << 10,
}

// chunkSizeAlignment is the boundary requests beyond the largest table entry
// are rounded up to. It is equal to 4Mb.
const chunkSizeAlignment uint = 4 * 1024 * 1024

// allocationChunkSize returns the size of device memory allocation that will
// service a request of requiredSize: the smallest table entry that is at
// least requiredSize, or requiredSize rounded up to the next 4Mb boundary
// when it exceeds the whole table.
func allocationChunkSize(requiredSize int) int {
	for _, chunkSize := range allocationChunkSizes {
		if chunkSize >= requiredSize {
			return chunkSize
		}
	}

	return memutils.AlignUp(requiredSize, chunkSizeAlignment)
}
