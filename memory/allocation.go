package memory

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/arsenal/memutils"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/depot/memory/internal/vulkan"
	"sort"
)

// memoryRange is a half-open byte interval [begin, end) within one device
// memory allocation.
type memoryRange struct {
	begin int
	end   int
}

// contains reports whether a region of the given size placed at begin would
// overlap this range.
func (r memoryRange) contains(begin int, size int) bool {
	return begin < r.end && r.begin < begin+size
}

// memoryAllocation owns one coarse device memory object and hands out
// sub-ranges of it. Committed ranges are kept sorted by begin offset and
// never overlap. The allocation is mapped lazily, in one piece, the first
// time any commit made from it is mapped.
type memoryAllocation struct {
	deviceMemory *vulkan.DeviceMemoryProperties
	memory       *vulkan.MappedMemory

	size              int
	propertyFlags     core1_0.MemoryPropertyFlags
	memoryTypeIndex   int
	shiftedMemoryType uint32

	commits []memoryRange
}

// commit reserves a free region of the given size, aligned to alignment,
// using the first sufficient gap in offset order. It returns false when no
// such gap exists, which the Allocator treats as a signal to look elsewhere
// or grow.
func (a *memoryAllocation) commit(size int, alignment uint) (*MemoryCommit, bool) {
	offset, ok := a.findFreeRegion(size, alignment)
	if !ok {
		return nil, false
	}

	index := sort.Search(len(a.commits), func(i int) bool {
		return a.commits[i].begin > offset
	})
	a.commits = append(a.commits, memoryRange{})
	copy(a.commits[index+1:], a.commits[index:])
	a.commits[index] = memoryRange{
		begin: offset,
		end:   offset + size,
	}
	memutils.DebugValidate(a)

	a.deviceMemory.AddCommit(a.memoryTypeIndex, size)

	return &MemoryCommit{
		allocation: a,
		memory:     a.memory.VulkanDeviceMemory(),
		interval: memoryRange{
			begin: offset,
			end:   offset + size,
		},
	}, true
}

func (a *memoryAllocation) free(begin int) {
	index := -1
	for commitIndex, commit := range a.commits {
		if commit.begin == begin {
			index = commitIndex
			break
		}
	}
	if index < 0 {
		panic(fmt.Sprintf("attempted to free a commit at offset %d, but no commit begins there", begin))
	}

	size := a.commits[index].end - a.commits[index].begin
	a.commits = append(a.commits[:index], a.commits[index+1:]...)
	memutils.DebugValidate(a)

	a.deviceMemory.RemoveCommit(a.memoryTypeIndex, size)
}

// findFreeRegion walks the committed ranges in ascending order, carrying a
// candidate offset. A candidate dies when it would overlap the range under
// inspection, and the scan cursor then continues from that range's end,
// aligned up. A candidate that survives every committed range wins.
func (a *memoryAllocation) findFreeRegion(size int, alignment uint) (int, bool) {
	memutils.DebugCheckPow2(alignment, "alignment")

	var candidate int
	hasCandidate := false
	iterator := 0
	commitIndex := 0

	for iterator+size <= a.size {
		if !hasCandidate {
			candidate = iterator
			hasCandidate = true
		}
		if commitIndex >= len(a.commits) {
			break
		}
		if a.commits[commitIndex].contains(candidate, size) {
			hasCandidate = false
		}
		iterator = memutils.AlignUp(a.commits[commitIndex].end, alignment)
		commitIndex++
	}

	if !hasCandidate {
		return 0, false
	}
	return candidate, true
}

// isCompatible reports whether commits requiring the given property flags and
// memory type mask can be placed in this allocation. Zero property flags, the
// result of a fully-relaxed request, are satisfied by any allocation in the
// type mask.
func (a *memoryAllocation) isCompatible(flags core1_0.MemoryPropertyFlags, typeMask uint32) bool {
	if typeMask&a.shiftedMemoryType == 0 {
		return false
	}
	return flags == 0 || a.propertyFlags&flags != 0
}

// mappedSpan maps the whole allocation if it has not been mapped yet and
// slices out [begin, end) of it.
func (a *memoryAllocation) mappedSpan(begin, end int) ([]byte, common.VkResult, error) {
	data, res, err := a.memory.Map()
	if err != nil {
		return nil, res, err
	}

	return data[begin:end], res, nil
}

func (a *memoryAllocation) Validate() error {
	previousEnd := 0
	for index, commit := range a.commits {
		if commit.begin >= commit.end {
			return errors.Errorf("the commit at index %d covers the empty or inverted range [%d, %d)", index, commit.begin, commit.end)
		}
		if commit.begin < previousEnd {
			return errors.Errorf("the commit at index %d begins at offset %d, before the end of the previous commit at offset %d", index, commit.begin, previousEnd)
		}
		if commit.end > a.size {
			return errors.Errorf("the commit at index %d ends at offset %d, beyond the allocation's size of %d", index, commit.end, a.size)
		}

		previousEnd = commit.end
	}

	return nil
}
