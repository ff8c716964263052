package memory

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/depot/memory/internal/vulkan"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
	"golang.org/x/exp/slog"
)

// CreateOptions contains optional settings when creating an Allocator
type CreateOptions struct {
	// VulkanCallbacks is an optional set of callbacks that will be executed from Vulkan on memory
	// created from this Allocator. Coarse allocations & frees performed by this Allocator do not
	// map 1:1 with commits & releases, so these will not be called for every commit
	VulkanCallbacks *driver.AllocationCallbacks

	// ExportHandleTypes can be left 0. If it is provided, every coarse device memory allocation
	// made by this Allocator will be created exportable with the requested handle types. Providing
	// it requires either core 1.1 or the extension khr_external_memory to be active on the Device
	// used to create this Allocator
	ExportHandleTypes khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags
}

// New creates a new Allocator
//
// logger - The logger this Allocator will write debug traces to
//
// physicalDevice - The PhysicalDevice that owns the provided Device
//
// device - The Device that memory will be allocated from
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, physicalDevice core1_0.PhysicalDevice, device core1_0.Device, options CreateOptions) (*Allocator, error) {
	deviceMemory, err := vulkan.NewDeviceMemoryProperties(
		options.VulkanCallbacks,
		device,
		physicalDevice,
		options.ExportHandleTypes,
	)
	if err != nil {
		return nil, err
	}

	return &Allocator{
		logger:       logger,
		deviceMemory: deviceMemory,
	}, nil
}
