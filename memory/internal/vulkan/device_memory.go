package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/memutils"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory"
	"github.com/vkngwrapper/extensions/v2/khr_external_memory_capabilities"
)

// DeviceMemoryProperties caches one device's memory capability table and
// tracks the coarse memory handed out from each heap. The table is queried
// once at construction and never refreshed. Not safe for concurrent use.
type DeviceMemoryProperties struct {
	// Number of coarse allocations made from each heap
	blockCount [common.MaxMemoryHeaps]int
	// Bytes of coarse memory allocated from each heap
	blockBytes [common.MaxMemoryHeaps]int
	// Number of live commits suballocated from each heap
	commitCount [common.MaxMemoryHeaps]int
	// Bytes of live commits suballocated from each heap
	commitBytes [common.MaxMemoryHeaps]int

	memoryCount int

	allocationCallbacks *driver.AllocationCallbacks
	exportHandleTypes   khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags

	device           core1_0.Device
	physicalDevice   core1_0.PhysicalDevice
	deviceProperties *core1_0.PhysicalDeviceProperties
	memoryProperties *core1_0.PhysicalDeviceMemoryProperties
}

func NewDeviceMemoryProperties(
	allocationCallbacks *driver.AllocationCallbacks,
	device core1_0.Device,
	physicalDevice core1_0.PhysicalDevice,
	exportHandleTypes khr_external_memory_capabilities.ExternalMemoryHandleTypeFlags,
) (*DeviceMemoryProperties, error) {
	extensionData := NewExtensionData(device)
	if exportHandleTypes != 0 && !extensionData.ExternalMemory {
		return nil, errors.New("memory.CreateOptions.ExportHandleTypes was provided, but neither the core 1.1 or the extension khr_external_memory are active")
	}

	deviceMemory := &DeviceMemoryProperties{
		allocationCallbacks: allocationCallbacks,
		exportHandleTypes:   exportHandleTypes,

		device:         device,
		physicalDevice: physicalDevice,
	}

	var err error
	deviceMemory.deviceProperties, err = physicalDevice.Properties()
	if err != nil {
		return nil, err
	}

	deviceMemory.memoryProperties = physicalDevice.MemoryProperties()

	err = memutils.CheckPow2(deviceMemory.deviceProperties.Limits.BufferImageGranularity, "device bufferImageGranularity")
	if err != nil {
		return nil, err
	}
	err = memutils.CheckPow2(deviceMemory.deviceProperties.Limits.NonCoherentAtomSize, "device nonCoherentAtomSize")
	if err != nil {
		return nil, err
	}

	return deviceMemory, nil
}

func (m *DeviceMemoryProperties) MemoryTypeCount() int {
	return len(m.memoryProperties.MemoryTypes)
}

func (m *DeviceMemoryProperties) MemoryHeapCount() int {
	return len(m.memoryProperties.MemoryHeaps)
}

func (m *DeviceMemoryProperties) MemoryTypeProperties(memoryTypeIndex int) core1_0.MemoryType {
	return m.memoryProperties.MemoryTypes[memoryTypeIndex]
}

func (m *DeviceMemoryProperties) MemoryHeapProperties(heapIndex int) core1_0.MemoryHeap {
	return m.memoryProperties.MemoryHeaps[heapIndex]
}

func (m *DeviceMemoryProperties) MemoryTypeIndexToHeapIndex(memTypeIndex int) int {
	return m.memoryProperties.MemoryTypes[memTypeIndex].HeapIndex
}

// AllocationCount returns the number of live coarse memory objects.
func (m *DeviceMemoryProperties) AllocationCount() int {
	return m.memoryCount
}

// AllocateVulkanMemory requests one coarse allocation from the device and
// wraps it for mapping. Failures leave the bookkeeping untouched.
func (m *DeviceMemoryProperties) AllocateVulkanMemory(size int, memoryTypeIndex int) (mem *MappedMemory, res common.VkResult, err error) {
	m.memoryCount++
	defer func() {
		// If we failed out, roll back the device increment
		if err != nil {
			m.memoryCount--
		}
	}()

	if m.memoryCount > m.deviceProperties.Limits.MaxMemoryAllocationCount {
		return nil, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	allocateInfo := core1_0.MemoryAllocateInfo{
		AllocationSize:  size,
		MemoryTypeIndex: memoryTypeIndex,
	}

	if m.exportHandleTypes != 0 {
		exportMemoryAllocInfo := khr_external_memory.ExportMemoryAllocateInfo{
			HandleTypes: m.exportHandleTypes,
		}
		exportMemoryAllocInfo.Next = allocateInfo.Next
		allocateInfo.Next = exportMemoryAllocInfo
	}

	memory, res, err := m.device.AllocateMemory(m.allocationCallbacks, allocateInfo)
	if err != nil {
		return nil, res, err
	}

	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryTypeIndex)
	m.blockCount[heapIndex]++
	m.blockBytes[heapIndex] += size

	return &MappedMemory{
		memory:              memory,
		size:                size,
		allocationCallbacks: m.allocationCallbacks,
	}, res, nil
}

// FreeVulkanMemory returns one coarse allocation to the device and rolls
// its bookkeeping back.
func (m *DeviceMemoryProperties) FreeVulkanMemory(memoryTypeIndex int, size int, memory *MappedMemory) {
	memory.FreeMemory()

	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryTypeIndex)
	m.blockBytes[heapIndex] -= size
	if m.blockBytes[heapIndex] < 0 {
		panic(fmt.Sprintf("block byte count for heap index %d went negative", heapIndex))
	}

	m.blockCount[heapIndex]--
	if m.blockCount[heapIndex] < 0 {
		panic(fmt.Sprintf("block count for heap index %d went negative", heapIndex))
	}

	m.memoryCount--
}

func (m *DeviceMemoryProperties) AddCommit(memoryTypeIndex int, size int) {
	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryTypeIndex)
	m.commitCount[heapIndex]++
	m.commitBytes[heapIndex] += size
}

func (m *DeviceMemoryProperties) RemoveCommit(memoryTypeIndex int, size int) {
	heapIndex := m.MemoryTypeIndexToHeapIndex(memoryTypeIndex)

	m.commitBytes[heapIndex] -= size
	if m.commitBytes[heapIndex] < 0 {
		panic(fmt.Sprintf("commit byte count for heap index %d went negative", heapIndex))
	}

	m.commitCount[heapIndex]--
	if m.commitCount[heapIndex] < 0 {
		panic(fmt.Sprintf("commit count for heap index %d went negative", heapIndex))
	}
}

// HeapStatistics fills stats with the current usage of one heap.
func (m *DeviceMemoryProperties) HeapStatistics(heapIndex int, stats *memutils.Statistics) {
	stats.BlockCount = m.blockCount[heapIndex]
	stats.BlockBytes = m.blockBytes[heapIndex]
	stats.AllocationCount = m.commitCount[heapIndex]
	stats.AllocationBytes = m.commitBytes[heapIndex]
}
