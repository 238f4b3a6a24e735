package resource

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/extensions/v2/khr_bind_memory2"
	"github.com/vkngwrapper/extensions/v2/khr_dedicated_allocation"
	"github.com/vkngwrapper/extensions/v2/khr_get_memory_requirements2"
	"github.com/vkngwrapper/extensions/v2/khr_maintenance4"
	"github.com/vkngwrapper/rpivk/memutils"
	"github.com/vkngwrapper/rpivk/resource/internal/handles"
	"golang.org/x/exp/slog"
)

// Device owns every buffer, image, and view created through it. Handles issued by a Device
// are only meaningful to that Device.
type Device struct {
	logger      *slog.Logger
	createFlags CreateFlags
	heapSize    int
	callbacks   resourceCallbacks

	destroyed      atomic.Bool
	maxHostObjects int64
	hostObjects    int64

	buffers     handles.Table[Buffer, *bufferObject]
	images      handles.Table[Image, *imageObject]
	bufferViews handles.Table[BufferView, *bufferViewObject]
	imageViews  handles.Table[ImageView, *imageViewObject]
}

func (d *Device) checkLive() {
	if d == nil {
		contractViolation("attempted to use a nil device")
	}
	if d.destroyed.Load() {
		contractViolation("attempted to use a device that has already been destroyed")
	}
}

// DeviceExtensions lists the names of the device extensions whose entry points this Device
// implements
func (d *Device) DeviceExtensions() []string {
	return []string{
		khr_bind_memory2.ExtensionName,
		khr_dedicated_allocation.ExtensionName,
		khr_get_memory_requirements2.ExtensionName,
		khr_maintenance4.ExtensionName,
	}
}

// HostObjectCount returns the number of host objects currently charged against the
// CreateOptions.MaxHostObjects budget
func (d *Device) HostObjectCount() int {
	return int(atomic.LoadInt64(&d.hostObjects))
}

func (d *Device) reserveHostObjects(count int) bool {
	if d.maxHostObjects == 0 {
		atomic.AddInt64(&d.hostObjects, int64(count))
		return true
	}

	for {
		currentVal := atomic.LoadInt64(&d.hostObjects)
		targetVal := currentVal + int64(count)

		if targetVal > d.maxHostObjects {
			return false
		}

		if atomic.CompareAndSwapInt64(&d.hostObjects, currentVal, targetVal) {
			return true
		}
	}
}

func (d *Device) releaseHostObjects(count int) {
	newVal := atomic.AddInt64(&d.hostObjects, int64(-count))

	if newVal < 0 {
		panic(fmt.Sprintf("host object count went negative: %d", newVal))
	}
}

func (d *Device) lookupBuffer(buffer Buffer, operation string) *bufferObject {
	obj, ok := d.buffers.Get(buffer)
	if !ok {
		d.reportBadHandle(ResourceKindBuffer, uint64(buffer), d.buffers.Issued(buffer), operation)
	}
	return obj
}

func (d *Device) lookupImage(image Image, operation string) *imageObject {
	obj, ok := d.images.Get(image)
	if !ok {
		d.reportBadHandle(ResourceKindImage, uint64(image), d.images.Issued(image), operation)
	}
	return obj
}

func (d *Device) lookupBufferView(view BufferView, operation string) *bufferViewObject {
	obj, ok := d.bufferViews.Get(view)
	if !ok {
		d.reportBadHandle(ResourceKindBufferView, uint64(view), d.bufferViews.Issued(view), operation)
	}
	return obj
}

func (d *Device) lookupImageView(view ImageView, operation string) *imageViewObject {
	obj, ok := d.imageViews.Get(view)
	if !ok {
		d.reportBadHandle(ResourceKindImageView, uint64(view), d.imageViews.Issued(view), operation)
	}
	return obj
}

func (d *Device) reportBadHandle(kind ResourceKind, handle uint64, issued bool, operation string) {
	if handle == 0 {
		contractViolation("%s: null %s handle", operation, kind)
	}
	if issued {
		contractViolation("%s: %s %d has already been destroyed", operation, kind, handle)
	}
	contractViolation("%s: %s %d was not created by this device", operation, kind, handle)
}

// IsBufferLive returns true if buffer was created by this Device and has not been destroyed
func (d *Device) IsBufferLive(buffer Buffer) bool {
	_, ok := d.buffers.Get(buffer)
	return ok
}

// IsImageLive returns true if image was created by this Device and has not been destroyed
func (d *Device) IsImageLive(image Image) bool {
	_, ok := d.images.Get(image)
	return ok
}

// IsBufferViewLive returns true if view was created by this Device and has not been destroyed
func (d *Device) IsBufferViewLive(view BufferView) bool {
	_, ok := d.bufferViews.Get(view)
	return ok
}

// IsImageViewLive returns true if view was created by this Device and has not been destroyed
func (d *Device) IsImageViewLive(view ImageView) bool {
	_, ok := d.imageViews.Get(view)
	return ok
}

// Validate checks the device's internal bookkeeping: handle tables, and the host object
// count against the objects actually held
func (d *Device) Validate() error {
	for _, table := range []interface{ Validate() error }{&d.buffers, &d.images, &d.bufferViews, &d.imageViews} {
		if err := table.Validate(); err != nil {
			return err
		}
	}

	expected := d.bufferViews.Count() + d.imageViews.Count()
	d.buffers.Visit(func(handle Buffer, obj *bufferObject) bool {
		expected += obj.hostObjectCount()
		return true
	})
	d.images.Visit(func(handle Image, obj *imageObject) bool {
		expected += obj.hostObjectCount()
		return true
	})

	if actual := d.HostObjectCount(); actual != expected {
		return errors.Newf("the device has charged %d host objects, but holds %d", actual, expected)
	}

	return nil
}

// Destroy releases the Device. Every handle created from it should have been destroyed first:
// any that remain are logged and reported as an error. Bound memory is never touched.
func (d *Device) Destroy() error {
	d.checkLive()
	d.logger.Debug("Device::Destroy")
	memutils.DebugValidate(d)

	leaked := 0
	d.buffers.Visit(func(handle Buffer, obj *bufferObject) bool {
		leaked++
		d.logUnreleasedResource(ResourceKindBuffer, uint64(handle), obj.binding)
		return true
	})
	d.images.Visit(func(handle Image, obj *imageObject) bool {
		leaked++
		d.logUnreleasedResource(ResourceKindImage, uint64(handle), obj.binding)
		return true
	})
	d.bufferViews.Visit(func(handle BufferView, obj *bufferViewObject) bool {
		leaked++
		d.logUnreleasedResource(ResourceKindBufferView, uint64(handle), memoryBinding{})
		return true
	})
	d.imageViews.Visit(func(handle ImageView, obj *imageViewObject) bool {
		leaked++
		d.logUnreleasedResource(ResourceKindImageView, uint64(handle), memoryBinding{})
		return true
	})

	d.destroyed.Store(true)

	if leaked > 0 {
		return errors.Newf("%d resources were not destroyed before the destruction of this device", leaked)
	}

	return nil
}

func (d *Device) logUnreleasedResource(kind ResourceKind, handle uint64, binding memoryBinding) {
	attrs := []slog.Attr{
		slog.String("kind", kind.String()),
		slog.Uint64("handle", handle),
		slog.Bool("bound", binding.IsBound()),
	}
	if binding.IsBound() {
		attrs = append(attrs, slog.Int("offset", binding.offset))
	}

	d.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED RESOURCE] undestroyed handle", attrs...)
}
