package resource

// ResourceKind identifies which sort of object a handle refers to
type ResourceKind uint32

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindImage
	ResourceKindBufferView
	ResourceKindImageView
)

var resourceKindMapping = map[ResourceKind]string{
	ResourceKindBuffer:     "Buffer",
	ResourceKindImage:      "Image",
	ResourceKindBufferView: "BufferView",
	ResourceKindImageView:  "ImageView",
}

func (k ResourceKind) String() string {
	str, ok := resourceKindMapping[k]
	if !ok {
		return "unknown ResourceKind"
	}

	return str
}

// Buffer is an opaque handle to a buffer created by a Device
type Buffer uint64

// Image is an opaque handle to an image created by a Device
type Image uint64

// BufferView is an opaque handle to a buffer view created by a Device
type BufferView uint64

// ImageView is an opaque handle to an image view created by a Device
type ImageView uint64

const (
	NullBuffer     Buffer     = 0
	NullImage      Image      = 0
	NullBufferView BufferView = 0
	NullImageView  ImageView  = 0
)
