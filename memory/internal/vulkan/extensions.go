package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_1"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
)

// ExtensionData indicates which optional device capabilities are available
// to the allocator.
type ExtensionData struct {
	ExternalMemory bool
}

func NewExtensionData(device core1_0.Device) *ExtensionData {
	data := &ExtensionData{}

	// Core 1.1 active - khr_external_memory was promoted there
	device11 := core1_1.PromoteDevice(device)
	if device11 != nil {
		data.ExternalMemory = true
	}

	// khr_external_memory if core 1.1 is not active
	if !data.ExternalMemory && device.IsDeviceExtensionActive(khr_external_memory.ExtensionName) {
		data.ExternalMemory = true
	}

	return data
}
