package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// ImageCreateInfo describes a new image
type ImageCreateInfo struct {
	ImageType   core1_0.ImageType
	Format      core1_0.Format
	Extent      core1_0.Extent3D
	MipLevels   int
	ArrayLayers int
	Samples     core1_0.SampleCountFlags
	Tiling      core1_0.ImageTiling
	Usage       core1_0.ImageUsageFlags

	SharingMode core1_0.SharingMode
	// QueueFamilyIndices lists the queue families that may access the image concurrently.
	// The device keeps its own copy, which is released when the image is destroyed.
	QueueFamilyIndices []uint32

	InitialLayout core1_0.ImageLayout
}

type imageObject struct {
	imageType   core1_0.ImageType
	format      core1_0.Format
	extent      core1_0.Extent3D
	mipLevels   int
	arrayLayers int
	samples     core1_0.SampleCountFlags
	tiling      core1_0.ImageTiling
	usage       core1_0.ImageUsageFlags

	sharingMode        core1_0.SharingMode
	queueFamilyIndices []uint32

	layout core1_0.ImageLayout

	requirements core1_0.MemoryRequirements
	binding      memoryBinding
}

func (i *imageObject) hostObjectCount() int {
	if i.queueFamilyIndices != nil {
		return 2
	}
	return 1
}

func (i *imageObject) createInfo() ImageCreateInfo {
	return ImageCreateInfo{
		ImageType:          i.imageType,
		Format:             i.format,
		Extent:             i.extent,
		MipLevels:          i.mipLevels,
		ArrayLayers:        i.arrayLayers,
		Samples:            i.samples,
		Tiling:             i.tiling,
		Usage:              i.usage,
		SharingMode:        i.sharingMode,
		QueueFamilyIndices: slices.Clone(i.queueFamilyIndices),
		InitialLayout:      i.layout,
	}
}

// CreateImage creates a new, unbound image. The size of its backing store is computed from
// the format, extent, mip levels, array layers, samples, and tiling at creation, and formats
// the device cannot size fail with core1_0.VKErrorFormatNotSupported.
//
// If the host object budget runs out, no image is created and nothing already reserved for
// it is leaked.
//
// Only a nil allocationCallbacks is supported.
func (d *Device) CreateImage(allocationCallbacks *driver.AllocationCallbacks, info ImageCreateInfo) (image Image, res common.VkResult, err error) {
	d.checkLive()
	d.logger.Debug("Device::CreateImage",
		slog.Int("Width", info.Extent.Width),
		slog.Int("Height", info.Extent.Height),
		slog.Int("Depth", info.Extent.Depth),
	)

	res, err = checkAllocationCallbacks(allocationCallbacks, "CreateImage")
	if err != nil {
		return NullImage, res, err
	}

	requirements, res, err := computeRequirements(resourceDescriptor{Kind: ResourceKindImage, Image: &info})
	if err != nil {
		return NullImage, res, err
	}

	if !d.reserveHostObjects(1) {
		d.logger.Debug("    Device::CreateImage FAILED", slog.Int("HostObjects", d.HostObjectCount()))
		return NullImage, core1_0.VKErrorOutOfHostMemory, errors.Wrap(ErrOutOfHostMemory, "could not allocate an image")
	}
	defer func() {
		// If we failed out, roll back the image reservation
		if err != nil {
			d.releaseHostObjects(1)
		}
	}()

	obj := &imageObject{
		imageType:    info.ImageType,
		format:       info.Format,
		extent:       info.Extent,
		mipLevels:    info.MipLevels,
		arrayLayers:  info.ArrayLayers,
		samples:      info.Samples,
		tiling:       info.Tiling,
		usage:        info.Usage,
		sharingMode:  info.SharingMode,
		layout:       info.InitialLayout,
		requirements: requirements,
	}

	if len(info.QueueFamilyIndices) > 0 {
		if !d.reserveHostObjects(1) {
			d.logger.Debug("    Device::CreateImage FAILED to copy queue family indices", slog.Int("HostObjects", d.HostObjectCount()))
			return NullImage, core1_0.VKErrorOutOfHostMemory, errors.Wrapf(ErrOutOfHostMemory, "could not allocate %d queue family indices", len(info.QueueFamilyIndices))
		}
		obj.queueFamilyIndices = slices.Clone(info.QueueFamilyIndices)
	}

	return d.images.Insert(obj), core1_0.VKSuccess, nil
}

// DestroyImage releases an image handle along with its copy of the queue family indices.
// Memory the image was bound to is owned by the caller and is not freed or otherwise
// affected. Destroying NullImage does nothing.
func (d *Device) DestroyImage(allocationCallbacks *driver.AllocationCallbacks, image Image) error {
	d.checkLive()
	d.logger.Debug("Device::DestroyImage")

	if _, err := checkAllocationCallbacks(allocationCallbacks, "DestroyImage"); err != nil {
		return err
	}

	if image == NullImage {
		return nil
	}

	obj, ok := d.images.Remove(image)
	if !ok {
		d.reportBadHandle(ResourceKindImage, uint64(image), d.images.Issued(image), "DestroyImage")
	}

	hostObjects := obj.hostObjectCount()
	obj.queueFamilyIndices = nil
	d.releaseHostObjects(hostObjects)
	d.callbacks.Destroy(ResourceKindImage, uint64(image), obj.binding, obj.requirements.Size)

	return nil
}

// ImageInfo returns the parameters a live image was created with. InitialLayout holds the
// image's current layout.
func (d *Device) ImageInfo(image Image) ImageCreateInfo {
	d.checkLive()

	return d.lookupImage(image, "ImageInfo").createInfo()
}

// ImageLayout returns the current layout of a live image. Layout transitions are recorded
// into command buffers, so this is the image's initial layout until one is executed.
func (d *Device) ImageLayout(image Image) core1_0.ImageLayout {
	d.checkLive()

	return d.lookupImage(image, "ImageLayout").layout
}
