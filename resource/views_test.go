package resource

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
)

func TestBufferView(t *testing.T) {
	device := readyDevice(t, CreateOptions{})

	buffer, _, err := device.CreateBuffer(nil, BufferCreateInfo{Size: 1000})
	require.NoError(t, err)

	info := BufferViewCreateInfo{
		Buffer: buffer,
		Format: core1_0.FormatR32SignedFloat,
		Offset: 64,
		Range:  128,
	}
	view, res, err := device.CreateBufferView(nil, info)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	require.Equal(t, info, device.BufferViewInfo(view))
	require.Equal(t, 128, device.BufferViewRange(view))

	whole, _, err := device.CreateBufferView(nil, BufferViewCreateInfo{Buffer: buffer, Offset: 200, Range: common.WholeSize})
	require.NoError(t, err)
	require.Equal(t, 800, device.BufferViewRange(whole))

	// Ranges are not checked against the buffer here
	overrun, _, err := device.CreateBufferView(nil, BufferViewCreateInfo{Buffer: buffer, Offset: 2000, Range: common.WholeSize})
	require.NoError(t, err)
	require.Equal(t, 0, device.BufferViewRange(overrun))

	require.Equal(t, 4, device.HostObjectCount())

	require.NoError(t, device.DestroyBufferView(nil, NullBufferView))
	require.NoError(t, device.DestroyBufferView(nil, view))
	require.NoError(t, device.DestroyBufferView(nil, whole))
	require.NoError(t, device.DestroyBufferView(nil, overrun))
	require.True(t, device.IsBufferLive(buffer))
	require.Equal(t, 1, device.HostObjectCount())

	requireContractViolation(t, func() {
		_ = device.DestroyBufferView(nil, view)
	})
	requireContractViolation(t, func() {
		device.BufferViewInfo(view)
	})
}

func TestBufferViewRequiresLiveBuffer(t *testing.T) {
	device := readyDevice(t, CreateOptions{})

	requireContractViolation(t, func() {
		_, _, _ = device.CreateBufferView(nil, BufferViewCreateInfo{Buffer: NullBuffer, Range: common.WholeSize})
	})

	buffer, _, err := device.CreateBuffer(nil, BufferCreateInfo{Size: 1000})
	require.NoError(t, err)
	require.NoError(t, device.DestroyBuffer(nil, buffer))

	requireContractViolation(t, func() {
		_, _, _ = device.CreateBufferView(nil, BufferViewCreateInfo{Buffer: buffer, Range: common.WholeSize})
	})
	require.Equal(t, 0, device.HostObjectCount())
}

func TestImageView(t *testing.T) {
	device := readyDevice(t, CreateOptions{})

	imageInfo := testImageInfo(64, 64, core1_0.FormatR8G8B8A8SRGB)
	imageInfo.MipLevels = 4
	image, _, err := device.CreateImage(nil, imageInfo)
	require.NoError(t, err)

	info := ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   core1_0.FormatR8G8B8A8SRGB,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     core1_0.ImageAspectColor,
			BaseMipLevel:   1,
			LevelCount:     2,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	view, res, err := device.CreateImageView(nil, info)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	require.Equal(t, info, device.ImageViewInfo(view))
	require.True(t, device.IsImageViewLive(view))
	require.Equal(t, 2, device.HostObjectCount())

	require.NoError(t, device.DestroyImageView(nil, NullImageView))
	require.NoError(t, device.DestroyImageView(nil, view))
	require.False(t, device.IsImageViewLive(view))
	require.True(t, device.IsImageLive(image))

	requireContractViolation(t, func() {
		_ = device.DestroyImageView(nil, view)
	})

	require.NoError(t, device.DestroyImage(nil, image))
	requireContractViolation(t, func() {
		_, _, _ = device.CreateImageView(nil, info)
	})
	require.NoError(t, device.Validate())
}
