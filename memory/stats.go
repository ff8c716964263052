package memory

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/memutils"
	"strconv"
)

// AddDetailedStatistics folds the current usage of every coarse allocation
// owned by this Allocator into stats.
func (a *Allocator) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	for _, allocation := range a.allocations {
		allocation.addDetailedStatistics(stats)
	}
}

// BuildStatsString writes a JSON description of the Allocator's current
// state to writer. The output is meant for humans hunting leaks and
// fragmentation, not for machine consumption.
func (a *Allocator) BuildStatsString(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	var total memutils.DetailedStatistics
	total.Clear()
	a.AddDetailedStatistics(&total)

	totalObj := objState.Name("Total").Object()
	printDetailedStatistics(&total, totalObj)
	totalObj.End()

	heapsObj := objState.Name("MemoryHeaps").Object()
	heapCount := a.deviceMemory.MemoryHeapCount()
	for heapIndex := 0; heapIndex < heapCount; heapIndex++ {
		var heapStats memutils.Statistics
		a.deviceMemory.HeapStatistics(heapIndex, &heapStats)

		heapObj := heapsObj.Name(strconv.Itoa(heapIndex)).Object()
		heapObj.Name("Size").Int(a.deviceMemory.MemoryHeapProperties(heapIndex).Size)
		heapObj.Name("Blocks").Int(heapStats.BlockCount)
		heapObj.Name("BlockBytes").Int(heapStats.BlockBytes)
		heapObj.Name("Commits").Int(heapStats.AllocationCount)
		heapObj.Name("CommitBytes").Int(heapStats.AllocationBytes)
		heapObj.End()
	}
	heapsObj.End()

	allocationsObj := objState.Name("Allocations").Object()
	for allocationIndex, allocation := range a.allocations {
		allocationObj := allocationsObj.Name(strconv.Itoa(allocationIndex)).Object()
		allocation.printDetailedMap(allocationObj)
		allocationObj.End()
	}
	allocationsObj.End()
}

func printDetailedStatistics(stats *memutils.DetailedStatistics, json jwriter.ObjectState) {
	json.Name("Blocks").Int(stats.Statistics.BlockCount)
	json.Name("BlockBytes").Int(stats.Statistics.BlockBytes)
	json.Name("Commits").Int(stats.Statistics.AllocationCount)
	json.Name("CommitBytes").Int(stats.Statistics.AllocationBytes)
	json.Name("UnusedRanges").Int(stats.UnusedRangeCount)

	// The minimums are seeded with MaxInt, only print ranges that exist
	if stats.Statistics.AllocationCount > 0 {
		json.Name("CommitSizeMin").Int(stats.AllocationSizeMin)
		json.Name("CommitSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		json.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		json.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
}

func (a *memoryAllocation) addDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.Statistics.BlockCount++
	stats.Statistics.BlockBytes += a.size

	previousEnd := 0
	for _, commit := range a.commits {
		if commit.begin > previousEnd {
			stats.AddUnusedRange(commit.begin - previousEnd)
		}
		stats.AddAllocation(commit.end - commit.begin)
		previousEnd = commit.end
	}
	if a.size > previousEnd {
		stats.AddUnusedRange(a.size - previousEnd)
	}
}

func (a *memoryAllocation) printDetailedMap(json jwriter.ObjectState) {
	json.Name("TotalBytes").Int(a.size)
	json.Name("MemoryTypeIndex").Int(a.memoryTypeIndex)
	json.Name("PropertyFlags").String(a.propertyFlags.String())
	json.Name("Mapped").Bool(a.memory.IsMapped())

	arrayState := json.Name("Commits").Array()
	defer arrayState.End()

	for _, commit := range a.commits {
		obj := arrayState.Object()
		obj.Name("Offset").Int(commit.begin)
		obj.Name("Size").Int(commit.end - commit.begin)
		obj.End()
	}
}
