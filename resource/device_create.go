package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific device behaviors to activate or deactivate
type CreateFlags int32

var deviceCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	deviceCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return deviceCreateFlagsMapping.FlagsToString(f)
}

const (
	// DeviceCreateExternallySynchronized ensures that the device's handle tables will not be
	// synchronized internally. The consumer must guarantee that the Device is used from only
	// one thread at a time or is synchronized by some other mechanism.
	//
	// Without this flag, operations on distinct handles may be issued from multiple threads.
	// Operations on the same handle always require external synchronization.
	DeviceCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	DeviceCreateExternallySynchronized.Register("DeviceCreateExternallySynchronized")
}

const (
	// defaultHeapSize is the size reported for the unified memory heap when none is
	// provided via CreateOptions. It is equal to 256Mb.
	defaultHeapSize int = 256 * 1024 * 1024
)

// CreateOptions contains optional settings when creating a Device
type CreateOptions struct {
	// Flags indicates specific device behaviors to activate or deactivate
	Flags CreateFlags

	// MaxHostObjects is the number of host objects the device may hold at once. Every live
	// handle is one host object, and every queue family index list copied into a buffer or
	// image is another. When the budget is exhausted, creation fails with
	// core1_0.VKErrorOutOfHostMemory. 0 means no limit.
	MaxHostObjects int

	// HeapSize is the size in bytes reported for the unified memory heap by MemoryProperties.
	// If left 0, 256Mb is reported.
	HeapSize int

	// ResourceCallbacks is an optional set of callbacks that will be executed when resources
	// are bound to memory or destroyed while bound
	ResourceCallbacks *ResourceCallbackOptions
}

// New creates a new Device
//
// logger - Debug-level traces of every entry point and error-level reports of unreleased
// resources are written here
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Device, error) {
	if logger == nil {
		return nil, errors.New("resource.New requires a non-nil logger")
	}
	if options.MaxHostObjects < 0 {
		return nil, errors.Newf("resource.CreateOptions.MaxHostObjects must not be negative, but was %d", options.MaxHostObjects)
	}
	if options.HeapSize < 0 {
		return nil, errors.Newf("resource.CreateOptions.HeapSize must not be negative, but was %d", options.HeapSize)
	}

	useMutex := options.Flags&DeviceCreateExternallySynchronized == 0

	device := &Device{
		logger:         logger,
		createFlags:    options.Flags,
		maxHostObjects: int64(options.MaxHostObjects),
		heapSize:       options.HeapSize,
	}
	device.callbacks = resourceCallbacks{
		Callbacks: options.ResourceCallbacks,
		Device:    device,
	}

	if device.heapSize == 0 {
		device.heapSize = defaultHeapSize
	}

	device.buffers.Init(useMutex, 0)
	device.images.Init(useMutex, 0)
	device.bufferViews.Init(useMutex, 0)
	device.imageViews.Init(useMutex, 0)

	logger.Debug("resource.New", slog.String("Flags", options.Flags.String()), slog.Int("MaxHostObjects", options.MaxHostObjects))

	return device, nil
}
