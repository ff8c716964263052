package memory

import (
	"context"
	"fmt"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/depot/memory/internal/vulkan"
	"golang.org/x/exp/slog"
)

// Allocator services memory requests for a single Device by carving commits
// out of a small number of large device memory allocations. Allocations are
// created on demand, sized by allocationChunkSize, and kept for the
// Allocator's whole life: releasing a commit reopens its range for reuse but
// never returns device memory to the driver.
//
// An Allocator and every MemoryCommit made from it must be used from a
// single goroutine, or access must be synchronized by the caller.
type Allocator struct {
	logger *slog.Logger

	deviceMemory *vulkan.DeviceMemoryProperties
	allocations  []*memoryAllocation
}

// Commit reserves requirements.Size bytes of device memory with the property
// flags implied by usage, relaxed to what the device can actually provide.
// Existing allocations are probed in creation order and the first free region
// found wins. When every compatible allocation is full, one new allocation is
// created and the probe runs again.
//
// The returned commit must be released by the caller once the memory is no
// longer in use.
func (a *Allocator) Commit(requirements *core1_0.MemoryRequirements, usage MemoryUsage) (*MemoryCommit, common.VkResult, error) {
	a.logger.Debug("Allocator::Commit")

	if requirements == nil {
		return nil, core1_0.VKErrorUnknown, errors.New("attempted to commit memory with nil memory requirements")
	}

	// Find the fastest property flags this request can get on this device
	flags := a.memoryPropertyFlags(requirements.MemoryTypeBits, usage.propertyFlags())

	commit, ok := a.tryCommit(requirements, flags)
	if ok {
		return commit, core1_0.VKSuccess, nil
	}

	// Every compatible allocation is exhausted - grow by one and retry
	res, err := a.allocMemory(flags, requirements.MemoryTypeBits, allocationChunkSize(requirements.Size))
	if err != nil {
		return nil, res, err
	}

	commit, ok = a.tryCommit(requirements, flags)
	if !ok {
		panic(fmt.Sprintf("failed to commit %d bytes into device memory that was just allocated for this request", requirements.Size))
	}
	return commit, core1_0.VKSuccess, nil
}

// CommitBuffer commits memory suitable for buffer and binds buffer to it.
// The binding is permanent: Vulkan does not allow a buffer to be rebound, so
// the commit should stay alive as long as the buffer does.
func (a *Allocator) CommitBuffer(buffer core1_0.Buffer, usage MemoryUsage) (*MemoryCommit, common.VkResult, error) {
	a.logger.Debug("Allocator::CommitBuffer")

	if buffer == nil {
		return nil, core1_0.VKErrorUnknown, errors.New("attempted to commit memory for a nil buffer")
	}

	commit, res, err := a.Commit(buffer.MemoryRequirements(), usage)
	if err != nil {
		return nil, res, err
	}

	res, err = buffer.BindBufferMemory(commit.Memory(), commit.Offset())
	if err != nil {
		// Clean up the commit after error
		commit.Release()
		return nil, res, err
	}

	return commit, res, nil
}

// CommitImage commits memory suitable for image and binds image to it. As
// with CommitBuffer, the binding is permanent.
func (a *Allocator) CommitImage(image core1_0.Image, usage MemoryUsage) (*MemoryCommit, common.VkResult, error) {
	a.logger.Debug("Allocator::CommitImage")

	if image == nil {
		return nil, core1_0.VKErrorUnknown, errors.New("attempted to commit memory for a nil image")
	}

	commit, res, err := a.Commit(image.MemoryRequirements(), usage)
	if err != nil {
		return nil, res, err
	}

	res, err = image.BindImageMemory(commit.Memory(), commit.Offset())
	if err != nil {
		// Clean up the commit after error
		commit.Release()
		return nil, res, err
	}

	return commit, res, nil
}

// Destroy hands every coarse allocation back to the device. All commits must
// have been released beforehand: if any are still live they are logged and
// Destroy fails without freeing anything.
func (a *Allocator) Destroy() error {
	a.logger.Debug("Allocator::Destroy")

	unreleasedCommits := 0
	for allocationIndex, allocation := range a.allocations {
		for _, commit := range allocation.commits {
			a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased commit",
				slog.Int("AllocationIndex", allocationIndex),
				slog.Int("Offset", commit.begin),
				slog.Int("Size", commit.end-commit.begin),
			)
			unreleasedCommits++
		}
	}
	if unreleasedCommits > 0 {
		return errors.Newf("%d commits were not released before the destruction of this allocator!", unreleasedCommits)
	}

	for _, allocation := range a.allocations {
		a.deviceMemory.FreeVulkanMemory(allocation.memoryTypeIndex, allocation.size, allocation.memory)
		allocation.memory = nil
	}
	a.allocations = nil

	return nil
}

// tryCommit probes the existing allocations in creation order and places the
// request in the first one that is compatible and has room.
func (a *Allocator) tryCommit(requirements *core1_0.MemoryRequirements, flags core1_0.MemoryPropertyFlags) (*MemoryCommit, bool) {
	for _, allocation := range a.allocations {
		if !allocation.isCompatible(flags, requirements.MemoryTypeBits) {
			continue
		}

		commit, ok := allocation.commit(requirements.Size, uint(requirements.Alignment))
		if ok {
			return commit, true
		}
	}

	return nil, false
}

// allocMemory requests one new coarse allocation of the given size from the
// device and appends it to the probe order.
func (a *Allocator) allocMemory(flags core1_0.MemoryPropertyFlags, typeMask uint32, size int) (common.VkResult, error) {
	typeIndex, ok := a.findType(flags, typeMask)
	if !ok {
		panic(fmt.Sprintf("no memory type in mask 0x%x provides the property flags %s", typeMask, flags))
	}

	memory, res, err := a.deviceMemory.AllocateVulkanMemory(size, typeIndex)
	if err != nil {
		return res, errors.Wrapf(err, "failed to allocate %d bytes of device memory from memory type %d", size, typeIndex)
	}

	a.logger.Debug("    Allocated DeviceMemory", slog.Int("Size", size), slog.Int("MemoryTypeIndex", typeIndex))

	a.allocations = append(a.allocations, &memoryAllocation{
		deviceMemory: a.deviceMemory,
		memory:       memory,

		size:              size,
		propertyFlags:     flags,
		memoryTypeIndex:   typeIndex,
		shiftedMemoryType: 1 << typeIndex,
	})

	return res, nil
}

// memoryPropertyFlags resolves the property flags the device can actually
// offer for a request, dropping optional bits one at a time until some
// memory type in typeMask carries every remaining bit.
func (a *Allocator) memoryPropertyFlags(typeMask uint32, flags core1_0.MemoryPropertyFlags) core1_0.MemoryPropertyFlags {
	for {
		_, ok := a.findType(flags, typeMask)
		if ok {
			return flags
		}

		if flags&core1_0.MemoryPropertyHostCached != 0 {
			// Host cached is a nice-to-have for downloads, drop it first
			flags &^= core1_0.MemoryPropertyHostCached
			continue
		}
		if flags&core1_0.MemoryPropertyDeviceLocal != 0 {
			// Fall back to system memory when the mask has no device-local type
			flags &^= core1_0.MemoryPropertyDeviceLocal
			continue
		}

		panic(fmt.Sprintf("no compatible memory types in mask 0x%x, even after relaxing the requested property flags", typeMask))
	}
}

// findType returns the first memory type index set in typeMask whose
// property flags carry every bit of flags.
func (a *Allocator) findType(flags core1_0.MemoryPropertyFlags, typeMask uint32) (int, bool) {
	typeCount := a.deviceMemory.MemoryTypeCount()
	for typeIndex := 0; typeIndex < typeCount; typeIndex++ {
		typeFlags := a.deviceMemory.MemoryTypeProperties(typeIndex).PropertyFlags
		if typeMask&(1<<typeIndex) != 0 && typeFlags&flags == flags {
			return typeIndex, true
		}
	}

	return 0, false
}
