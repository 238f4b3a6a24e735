package resource

import (
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/rpivk/memutils"
	"golang.org/x/exp/slices"
)

// Statistics reports the device memory referenced by bound resources along with the number of
// live objects of each kind. Each distinct DeviceMemory with at least one resource bound into
// it is counted as a block, and each bound buffer or image as an allocation. Bytes in a block
// that no bound resource covers are reported as unused ranges.
type Statistics struct {
	memutils.DetailedStatistics

	BufferCount     int
	ImageCount      int
	BufferViewCount int
	ImageViewCount  int
	HostObjectCount int
}

type boundRegion struct {
	offset int
	size   int
}

// CalculateStatistics walks every live resource and summarizes the memory it is bound to
func (d *Device) CalculateStatistics() Statistics {
	d.checkLive()
	d.logger.Debug("Device::CalculateStatistics")

	var stats Statistics
	stats.Clear()

	regions := swiss.NewMap[DeviceMemory, []boundRegion](0)
	addBinding := func(binding memoryBinding, size int) {
		if !binding.IsBound() {
			return
		}

		existing, _ := regions.Get(binding.memory)
		regions.Put(binding.memory, append(existing, boundRegion{offset: binding.offset, size: size}))
	}

	d.buffers.Visit(func(handle Buffer, obj *bufferObject) bool {
		stats.BufferCount++
		addBinding(obj.binding, obj.requirements.Size)
		return true
	})
	d.images.Visit(func(handle Image, obj *imageObject) bool {
		stats.ImageCount++
		addBinding(obj.binding, obj.requirements.Size)
		return true
	})
	stats.BufferViewCount = d.bufferViews.Count()
	stats.ImageViewCount = d.imageViews.Count()
	stats.HostObjectCount = d.HostObjectCount()

	regions.Iter(func(memory DeviceMemory, bound []boundRegion) bool {
		blockStats := calculateBlockStatistics(memory.Size(), bound)
		stats.AddDetailedStatistics(&blockStats)
		return false
	})

	return stats
}

// calculateBlockStatistics summarizes the resources bound into a single DeviceMemory
func calculateBlockStatistics(blockSize int, bound []boundRegion) memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()

	stats.BlockCount = 1
	stats.BlockBytes = blockSize
	for _, region := range bound {
		stats.AddAllocation(region.size)
	}
	addUnusedRanges(&stats, blockSize, bound)

	return stats
}

// addUnusedRanges records the gaps between the regions bound into a single block. Regions
// may alias one another, so overlapping regions are merged before the gaps are measured.
func addUnusedRanges(stats *memutils.DetailedStatistics, blockSize int, bound []boundRegion) {
	slices.SortFunc(bound, func(left, right boundRegion) bool {
		return left.offset < right.offset
	})

	cursor := 0
	for _, region := range bound {
		if region.offset > cursor {
			stats.AddUnusedRange(region.offset - cursor)
		}

		end := region.offset + region.size
		if end > cursor {
			cursor = end
		}
	}

	if cursor < blockSize {
		stats.AddUnusedRange(blockSize - cursor)
	}
}

// BuildStatsString produces a json document describing the device's live objects and the
// memory bound to them. When detailed is true, every buffer and image is listed along with
// its binding.
func (d *Device) BuildStatsString(detailed bool) string {
	stats := d.CalculateStatistics()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	extensions := obj.Name("Extensions").Array()
	for _, name := range d.DeviceExtensions() {
		extensions.String(name)
	}
	extensions.End()

	countsObj := obj.Name("Objects").Object()
	countsObj.Name("Buffers").Int(stats.BufferCount)
	countsObj.Name("Images").Int(stats.ImageCount)
	countsObj.Name("BufferViews").Int(stats.BufferViewCount)
	countsObj.Name("ImageViews").Int(stats.ImageViewCount)
	countsObj.Name("HostObjects").Int(stats.HostObjectCount)
	countsObj.End()

	totalObj := obj.Name("Total").Object()
	stats.DetailedStatistics.PrintJson(&totalObj)
	totalObj.End()

	if detailed {
		d.printDetailedResources(&obj)
	}

	obj.End()
	return string(writer.Bytes())
}

func (d *Device) printDetailedResources(json *jwriter.ObjectState) {
	buffersArray := json.Name("Buffers").Array()
	d.buffers.Visit(func(handle Buffer, buffer *bufferObject) bool {
		obj := buffersArray.Object()
		obj.Name("Handle").Int(int(handle))
		obj.Name("Size").Int(buffer.size)
		obj.Name("Usage").String(buffer.usage.String())
		printRequirementsAndBinding(&obj, buffer.requirements.Size, buffer.binding)
		obj.End()
		return true
	})
	buffersArray.End()

	imagesArray := json.Name("Images").Array()
	d.images.Visit(func(handle Image, image *imageObject) bool {
		obj := imagesArray.Object()
		obj.Name("Handle").Int(int(handle))
		obj.Name("Width").Int(image.extent.Width)
		obj.Name("Height").Int(image.extent.Height)
		obj.Name("Depth").Int(image.extent.Depth)
		obj.Name("MipLevels").Int(image.mipLevels)
		obj.Name("ArrayLayers").Int(image.arrayLayers)
		obj.Name("Tiling").String(image.tiling.String())
		obj.Name("Layout").String(image.layout.String())
		printRequirementsAndBinding(&obj, image.requirements.Size, image.binding)
		obj.End()
		return true
	})
	imagesArray.End()
}

func printRequirementsAndBinding(json *jwriter.ObjectState, alignedSize int, binding memoryBinding) {
	json.Name("AlignedSize").Int(alignedSize)
	json.Name("Bound").Bool(binding.IsBound())
	if binding.IsBound() {
		json.Name("Offset").Int(binding.offset)
		json.Name("MemorySize").Int(binding.memory.Size())
	}
}
