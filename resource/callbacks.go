package resource

// BindCallback is called after a buffer or image has been bound to memory
type BindCallback func(
	device *Device,
	kind ResourceKind,
	handle uint64,
	memory DeviceMemory,
	offset int,
	size int,
	userData any,
)

// DestroyCallback is called after a buffer or image that was bound to memory has been
// destroyed. The memory itself is still owned by the caller and is untouched.
type DestroyCallback func(
	device *Device,
	kind ResourceKind,
	handle uint64,
	memory DeviceMemory,
	offset int,
	size int,
	userData any,
)

type ResourceCallbackOptions struct {
	Bind     BindCallback
	Destroy  DestroyCallback
	UserData any
}

type resourceCallbacks struct {
	Callbacks *ResourceCallbackOptions
	Device    *Device
}

func (c *resourceCallbacks) Bind(kind ResourceKind, handle uint64, binding memoryBinding, size int) {
	if c.Callbacks != nil && c.Callbacks.Bind != nil {
		c.Callbacks.Bind(c.Device, kind, handle, binding.memory, binding.offset, size, c.Callbacks.UserData)
	}
}

func (c *resourceCallbacks) Destroy(kind ResourceKind, handle uint64, binding memoryBinding, size int) {
	if !binding.IsBound() {
		return
	}

	if c.Callbacks != nil && c.Callbacks.Destroy != nil {
		c.Callbacks.Destroy(c.Device, kind, handle, binding.memory, binding.offset, size, c.Callbacks.UserData)
	}
}
