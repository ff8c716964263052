package memory

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// MemoryCommit is one live reservation inside a coarse device memory
// allocation owned by an Allocator. It pins the byte range [Offset,
// Offset+Size) of Memory until Release is called.
//
// A MemoryCommit must be released exactly once when its consumer is done
// with it. Calling Release additional times is harmless.
type MemoryCommit struct {
	allocation *memoryAllocation

	memory   core1_0.DeviceMemory
	interval memoryRange
	span     []byte
}

// Memory returns the device memory object backing this commit. The object is
// shared with every other commit made from the same coarse allocation, so
// resources bound to it must use Offset.
func (c *MemoryCommit) Memory() core1_0.DeviceMemory {
	return c.memory
}

// Offset returns the byte offset of this commit within Memory.
func (c *MemoryCommit) Offset() int {
	return c.interval.begin
}

// Size returns the length of this commit in bytes.
func (c *MemoryCommit) Size() int {
	return c.interval.end - c.interval.begin
}

// Map returns the host-visible bytes of this commit, mapping the backing
// allocation on first use. The commit must have been made with a host-visible
// usage. The returned slice stays valid until the commit is released.
func (c *MemoryCommit) Map() ([]byte, common.VkResult, error) {
	if c.allocation == nil {
		panic("attempted to map a commit that has already been released")
	}
	if c.span != nil {
		return c.span, core1_0.VKSuccess, nil
	}

	span, res, err := c.allocation.mappedSpan(c.interval.begin, c.interval.end)
	if err != nil {
		return nil, res, err
	}

	c.span = span
	return c.span, res, nil
}

// Release returns this commit's byte range to its parent allocation. Only
// the first call does anything.
func (c *MemoryCommit) Release() {
	if c.allocation == nil {
		return
	}

	c.allocation.free(c.interval.begin)
	c.allocation = nil
	c.span = nil
}
