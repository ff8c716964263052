package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

// MappedMemory owns one coarse core1_0.DeviceMemory object and its host
// mapping. The mapping always covers the full allocation: it is created on
// the first Map call and stays in place until FreeMemory. Not safe for
// concurrent use.
type MappedMemory struct {
	memory core1_0.DeviceMemory
	size   int

	mapData []byte

	allocationCallbacks *driver.AllocationCallbacks
}

func (m *MappedMemory) VulkanDeviceMemory() core1_0.DeviceMemory {
	return m.memory
}

func (m *MappedMemory) Size() int {
	return m.size
}

func (m *MappedMemory) IsMapped() bool {
	return m.mapData != nil
}

// Map returns a byte view of the entire allocation, mapping it on first
// use. The returned slice stays valid until FreeMemory.
func (m *MappedMemory) Map() ([]byte, common.VkResult, error) {
	if m.mapData != nil {
		return m.mapData, core1_0.VKSuccess, nil
	}

	mapData, res, err := m.memory.Map(0, common.WholeSize, 0)
	if err != nil {
		return nil, res, err
	}
	if mapData == nil {
		return nil, core1_0.VKErrorMemoryMapFailed, errors.New("device memory reported a successful map but returned no mapped data")
	}

	m.mapData = unsafe.Slice((*byte)(mapData), m.size)
	return m.mapData, res, nil
}

// FreeMemory unmaps the allocation if it was ever mapped and returns it to
// the device.
func (m *MappedMemory) FreeMemory() {
	if m.mapData != nil {
		m.memory.Unmap()
		m.mapData = nil
	}

	m.memory.Free(m.allocationCallbacks)
}
