package validation

import (
	"io"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/memutils"
	"github.com/vkngwrapper/rpivk/resource"
	mock_resource "github.com/vkngwrapper/rpivk/resource/mocks"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func readyLayer(t *testing.T, options Options) *Layer {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	device, err := resource.New(logger, resource.CreateOptions{})
	require.NoError(t, err)

	layer, err := New(logger, device, options)
	require.NoError(t, err)

	return layer
}

func requireInvalid(t *testing.T, res common.VkResult, err error) {
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidOperation))
	require.Equal(t, core1_0.VKErrorUnknown, res)
}

func testImageInfo(width, height int) resource.ImageCreateInfo {
	return resource.ImageCreateInfo{
		ImageType:     core1_0.ImageType2D,
		Format:        core1_0.FormatR8G8B8A8UnsignedNormalized,
		Extent:        core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       1,
		Tiling:        core1_0.ImageTilingOptimal,
		Usage:         core1_0.ImageUsageSampled,
		SharingMode:   core1_0.SharingModeExclusive,
		InitialLayout: core1_0.ImageLayoutUndefined,
	}
}

func TestNewLayer(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	device, err := resource.New(logger, resource.CreateOptions{})
	require.NoError(t, err)

	_, err = New(nil, device, Options{})
	require.Error(t, err)
	_, err = New(logger, nil, Options{})
	require.Error(t, err)

	layer, err := New(logger, device, Options{})
	require.NoError(t, err)
	require.Same(t, device, layer.Device())
}

func TestLayerCreateBuffer(t *testing.T) {
	testCases := map[string]struct {
		Info  resource.BufferCreateInfo
		Valid bool
	}{
		"Valid":      {Info: resource.BufferCreateInfo{Size: 1}, Valid: true},
		"ZeroSize":   {Info: resource.BufferCreateInfo{Size: 0}},
		"Negative":   {Info: resource.BufferCreateInfo{Size: -10}},
		"Concurrent": {Info: resource.BufferCreateInfo{Size: 1, SharingMode: core1_0.SharingModeConcurrent, QueueFamilyIndices: []uint32{0, 1}}, Valid: true},
		"ConcurrentSingleQueue": {
			Info: resource.BufferCreateInfo{Size: 1, SharingMode: core1_0.SharingModeConcurrent, QueueFamilyIndices: []uint32{0}},
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			layer := readyLayer(t, Options{})

			buffer, res, err := layer.CreateBuffer(nil, testCase.Info)
			if !testCase.Valid {
				requireInvalid(t, res, err)
				require.Equal(t, resource.NullBuffer, buffer)
				require.Zero(t, layer.Device().HostObjectCount())
				return
			}

			require.NoError(t, err)
			require.Equal(t, core1_0.VKSuccess, res)
			require.True(t, layer.Device().IsBufferLive(buffer))
		})
	}
}

func TestLayerCreateImage(t *testing.T) {
	testCases := map[string]struct {
		Modify func(info *resource.ImageCreateInfo)
		Valid  bool
	}{
		"Valid": {Modify: func(info *resource.ImageCreateInfo) {}, Valid: true},
		"FullMipChain": {
			Modify: func(info *resource.ImageCreateInfo) { info.MipLevels = 7 },
			Valid:  true,
		},
		"TooManyMips": {
			Modify: func(info *resource.ImageCreateInfo) { info.MipLevels = 8 },
		},
		"NoMips": {
			Modify: func(info *resource.ImageCreateInfo) { info.MipLevels = 0 },
		},
		"NoLayers": {
			Modify: func(info *resource.ImageCreateInfo) { info.ArrayLayers = 0 },
		},
		"ZeroWidth": {
			Modify: func(info *resource.ImageCreateInfo) { info.Extent.Width = 0 },
		},
		"UnsupportedFormat": {
			Modify: func(info *resource.ImageCreateInfo) { info.Format = core1_0.Format(0) },
		},
		"Deep2D": {
			Modify: func(info *resource.ImageCreateInfo) { info.Extent.Depth = 2 },
		},
		"Tall1D": {
			Modify: func(info *resource.ImageCreateInfo) { info.ImageType = core1_0.ImageType1D },
		},
		"Layered3D": {
			Modify: func(info *resource.ImageCreateInfo) {
				info.ImageType = core1_0.ImageType3D
				info.Extent.Depth = 4
				info.ArrayLayers = 2
			},
		},
		"Multisampled": {
			Modify: func(info *resource.ImageCreateInfo) { info.Samples = 4 },
			Valid:  true,
		},
		"NonPow2Samples": {
			Modify: func(info *resource.ImageCreateInfo) { info.Samples = 3 },
		},
		"MultisampledLinear": {
			Modify: func(info *resource.ImageCreateInfo) {
				info.Samples = 4
				info.Tiling = core1_0.ImageTilingLinear
			},
		},
		"MultisampledMips": {
			Modify: func(info *resource.ImageCreateInfo) {
				info.Samples = 4
				info.MipLevels = 2
			},
		},
		"ConcurrentNoQueues": {
			Modify: func(info *resource.ImageCreateInfo) { info.SharingMode = core1_0.SharingModeConcurrent },
		},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			layer := readyLayer(t, Options{})

			info := testImageInfo(64, 64)
			testCase.Modify(&info)

			image, res, err := layer.CreateImage(nil, info)
			if !testCase.Valid {
				requireInvalid(t, res, err)
				require.Equal(t, resource.NullImage, image)
				return
			}

			require.NoError(t, err)
			require.Equal(t, core1_0.VKSuccess, res)
			require.Equal(t, info, layer.Device().ImageInfo(image))
		})
	}
}

func TestLayerStaleHandles(t *testing.T) {
	layer := readyLayer(t, Options{})

	buffer, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: 16})
	require.NoError(t, err)
	image, _, err := layer.CreateImage(nil, testImageInfo(8, 8))
	require.NoError(t, err)

	res, err := layer.DestroyBuffer(nil, resource.NullBuffer)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	res, err = layer.DestroyBuffer(nil, buffer)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
	res, err = layer.DestroyImage(nil, image)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	res, err = layer.DestroyBuffer(nil, buffer)
	requireInvalid(t, res, err)
	res, err = layer.DestroyImage(nil, image)
	requireInvalid(t, res, err)

	_, res, err = layer.GetBufferMemoryRequirements(buffer)
	requireInvalid(t, res, err)
	_, res, err = layer.GetImageMemoryRequirements(image)
	requireInvalid(t, res, err)

	res, err = layer.BindBufferMemory(buffer, &devicelessMemory{size: memutils.PageSize}, 0)
	requireInvalid(t, res, err)
	res, err = layer.DestroyBufferView(nil, resource.BufferView(buffer))
	requireInvalid(t, res, err)
	res, err = layer.DestroyImageView(nil, resource.ImageView(image))
	requireInvalid(t, res, err)

	require.NoError(t, layer.Device().Validate())
}

type devicelessMemory struct {
	size int
}

func (m *devicelessMemory) Size() int {
	return m.size
}

func (m *devicelessMemory) Alignment() uint {
	return uint(memutils.PageSize)
}

func TestLayerBindBufferMemory(t *testing.T) {
	page := memutils.PageSize

	testCases := map[string]struct {
		MemorySize       int
		Offset           int
		NilMemory        bool
		ExpectMisaligned bool
		Valid            bool
	}{
		"Valid":         {MemorySize: 2 * page, Offset: page, Valid: true},
		"NilMemory":     {NilMemory: true},
		"Misaligned":    {MemorySize: 2 * page, Offset: 64, ExpectMisaligned: true},
		"Overrun":       {MemorySize: 2*page - 1, Offset: page},
		"OffsetPastEnd": {MemorySize: page, Offset: page},
		"Negative":      {MemorySize: page, Offset: -page},
	}

	for testName, testCase := range testCases {
		t.Run(testName, func(t *testing.T) {
			layer := readyLayer(t, Options{})

			buffer, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: page})
			require.NoError(t, err)

			var memory resource.DeviceMemory
			if !testCase.NilMemory {
				memory = mock_resource.EasyMockDeviceMemory(gomock.NewController(t), testCase.MemorySize, uint(page))
			}

			res, err := layer.BindBufferMemory(buffer, memory, testCase.Offset)
			_, _, bound := layer.Device().BufferBinding(buffer)
			if !testCase.Valid {
				requireInvalid(t, res, err)
				require.Equal(t, testCase.ExpectMisaligned, errors.Is(err, memutils.MisalignedError))
				require.False(t, bound)
				return
			}

			require.NoError(t, err)
			require.Equal(t, core1_0.VKSuccess, res)
			require.True(t, bound)

			// A second bind panics in the device but is an error here
			res, err = layer.BindBufferMemory(buffer, memory, 0)
			requireInvalid(t, res, err)
		})
	}
}

func TestLayerBindImageMemory(t *testing.T) {
	layer := readyLayer(t, Options{})

	image, _, err := layer.CreateImage(nil, testImageInfo(64, 64))
	require.NoError(t, err)

	requirements, res, err := layer.GetImageMemoryRequirements(image)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	memory := &devicelessMemory{size: requirements.Size}
	res, err = layer.BindImageMemory(image, memory, memutils.PageSize)
	requireInvalid(t, res, err)

	res, err = layer.BindImageMemory(image, memory, 0)
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	res, err = layer.BindImageMemory(image, memory, 0)
	requireInvalid(t, res, err)
}

func TestLayerBindMemory2AllOrNothing(t *testing.T) {
	layer := readyLayer(t, Options{})
	memory := &devicelessMemory{size: 2 * memutils.PageSize}

	first, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: 16})
	require.NoError(t, err)
	second, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: 16})
	require.NoError(t, err)

	// The second binding is misaligned, so the first is not bound either
	res, err := layer.BindBufferMemory2([]resource.BindBufferMemoryInfo{
		{Buffer: first, Memory: memory, MemoryOffset: 0},
		{Buffer: second, Memory: memory, MemoryOffset: 1},
	})
	requireInvalid(t, res, err)
	_, _, bound := layer.Device().BufferBinding(first)
	require.False(t, bound)

	res, err = layer.BindBufferMemory2([]resource.BindBufferMemoryInfo{
		{Buffer: first, Memory: memory, MemoryOffset: 0},
		{Buffer: first, Memory: memory, MemoryOffset: memutils.PageSize},
	})
	requireInvalid(t, res, err)

	res, err = layer.BindBufferMemory2([]resource.BindBufferMemoryInfo{
		{Buffer: first, Memory: memory, MemoryOffset: 0},
		{Buffer: second, Memory: memory, MemoryOffset: memutils.PageSize},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)

	image, _, err := layer.CreateImage(nil, testImageInfo(8, 8))
	require.NoError(t, err)
	other, _, err := layer.CreateImage(nil, testImageInfo(8, 8))
	require.NoError(t, err)

	res, err = layer.BindImageMemory2([]resource.BindImageMemoryInfo{
		{Image: image, Memory: memory, MemoryOffset: 0},
		{Image: other, Memory: nil, MemoryOffset: 0},
	})
	requireInvalid(t, res, err)
	_, _, bound = layer.Device().ImageBinding(image)
	require.False(t, bound)

	res, err = layer.BindImageMemory2([]resource.BindImageMemoryInfo{
		{Image: image, Memory: memory, MemoryOffset: 0},
		{Image: other, Memory: memory, MemoryOffset: memutils.PageSize},
	})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestLayerBufferViews(t *testing.T) {
	testCases := map[string]struct {
		Offset        int
		Range         int
		ValidUnranged bool
		ValidRanged   bool
	}{
		"InRange":     {Offset: 0, Range: 256, ValidUnranged: true, ValidRanged: true},
		"WholeSize":   {Offset: 128, Range: common.WholeSize, ValidUnranged: true, ValidRanged: true},
		"Overrun":     {Offset: 128, Range: 1000, ValidUnranged: true},
		"OffsetAtEnd": {Offset: 1024, Range: common.WholeSize, ValidUnranged: true},
		"ZeroRange":   {Offset: 0, Range: 0, ValidUnranged: true},
	}

	for testName, testCase := range testCases {
		for _, checkRanges := range []bool{false, true} {
			name, valid := testName, testCase.ValidUnranged
			if checkRanges {
				name, valid = testName+"Checked", testCase.ValidRanged
			}

			t.Run(name, func(t *testing.T) {
				layer := readyLayer(t, Options{CheckViewRanges: checkRanges})

				buffer, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{
					Size:  1024,
					Usage: core1_0.BufferUsageUniformTexelBuffer,
				})
				require.NoError(t, err)

				view, res, err := layer.CreateBufferView(nil, resource.BufferViewCreateInfo{
					Buffer: buffer,
					Format: core1_0.FormatR32SignedFloat,
					Offset: testCase.Offset,
					Range:  testCase.Range,
				})
				if !valid {
					requireInvalid(t, res, err)
					require.Equal(t, resource.NullBufferView, view)
					return
				}

				require.NoError(t, err)
				require.Equal(t, core1_0.VKSuccess, res)

				res, err = layer.DestroyBufferView(nil, view)
				require.NoError(t, err)
				require.Equal(t, core1_0.VKSuccess, res)
			})
		}
	}
}

func TestLayerBufferViewRequirements(t *testing.T) {
	layer := readyLayer(t, Options{})

	plain, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: 1024, Usage: core1_0.BufferUsageVertexBuffer})
	require.NoError(t, err)
	texel, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: 1024, Usage: core1_0.BufferUsageStorageTexelBuffer})
	require.NoError(t, err)

	_, res, err := layer.CreateBufferView(nil, resource.BufferViewCreateInfo{Buffer: plain, Format: core1_0.FormatR32SignedFloat, Range: common.WholeSize})
	requireInvalid(t, res, err)

	_, res, err = layer.CreateBufferView(nil, resource.BufferViewCreateInfo{Buffer: texel, Format: core1_0.Format(0), Range: common.WholeSize})
	requireInvalid(t, res, err)

	_, res, err = layer.CreateBufferView(nil, resource.BufferViewCreateInfo{Buffer: resource.NullBuffer, Format: core1_0.FormatR32SignedFloat, Range: common.WholeSize})
	requireInvalid(t, res, err)

	_, res, err = layer.CreateBufferView(nil, resource.BufferViewCreateInfo{Buffer: texel, Format: core1_0.FormatR32SignedFloat, Range: common.WholeSize})
	require.NoError(t, err)
	require.Equal(t, core1_0.VKSuccess, res)
}

func TestLayerImageViews(t *testing.T) {
	testCases := map[string]struct {
		Range       core1_0.ImageSubresourceRange
		ValidRanged bool
	}{
		"AllMips":        {Range: core1_0.ImageSubresourceRange{AspectMask: core1_0.ImageAspectColor, LevelCount: 4, LayerCount: 2}, ValidRanged: true},
		"LastMip":        {Range: core1_0.ImageSubresourceRange{AspectMask: core1_0.ImageAspectColor, BaseMipLevel: 3, LevelCount: 1, LayerCount: 1}, ValidRanged: true},
		"MipOverrun":     {Range: core1_0.ImageSubresourceRange{AspectMask: core1_0.ImageAspectColor, BaseMipLevel: 3, LevelCount: 2, LayerCount: 1}},
		"BaseMipPastEnd": {Range: core1_0.ImageSubresourceRange{AspectMask: core1_0.ImageAspectColor, BaseMipLevel: 4, LevelCount: 1, LayerCount: 1}},
		"LayerOverrun":   {Range: core1_0.ImageSubresourceRange{AspectMask: core1_0.ImageAspectColor, LevelCount: 1, BaseArrayLayer: 1, LayerCount: 2}},
		"NoLayers":       {Range: core1_0.ImageSubresourceRange{AspectMask: core1_0.ImageAspectColor, LevelCount: 1, LayerCount: 0}},
	}

	for testName, testCase := range testCases {
		for _, checkRanges := range []bool{false, true} {
			name, valid := testName, true
			if checkRanges {
				name, valid = testName+"Checked", testCase.ValidRanged
			}

			t.Run(name, func(t *testing.T) {
				layer := readyLayer(t, Options{CheckViewRanges: checkRanges})

				info := testImageInfo(64, 64)
				info.MipLevels = 4
				info.ArrayLayers = 2
				image, _, err := layer.CreateImage(nil, info)
				require.NoError(t, err)

				view, res, err := layer.CreateImageView(nil, resource.ImageViewCreateInfo{
					Image:            image,
					ViewType:         core1_0.ImageViewType2D,
					Format:           core1_0.FormatR8G8B8A8UnsignedNormalized,
					SubresourceRange: testCase.Range,
				})
				if !valid {
					requireInvalid(t, res, err)
					require.Equal(t, resource.NullImageView, view)
					return
				}

				require.NoError(t, err)
				require.Equal(t, core1_0.VKSuccess, res)

				res, err = layer.DestroyImageView(nil, view)
				require.NoError(t, err)
				require.Equal(t, core1_0.VKSuccess, res)

				res, err = layer.DestroyImageView(nil, view)
				requireInvalid(t, res, err)
			})
		}
	}
}

func TestLayerOversizedResources(t *testing.T) {
	layer := readyLayer(t, Options{})

	// The requests are well formed, so the device's own failure comes back unchanged
	buffer, res, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: math.MaxInt - 100})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInvalidOperation))
	require.True(t, errors.Is(err, resource.ErrResourceTooLarge))
	require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
	require.Equal(t, resource.NullBuffer, buffer)

	info := testImageInfo(1<<21, 1<<21)
	info.ImageType = core1_0.ImageType3D
	info.Extent.Depth = 1 << 21
	info.Format = core1_0.FormatR32G32B32A32SignedFloat
	image, res, err := layer.CreateImage(nil, info)
	require.True(t, errors.Is(err, resource.ErrResourceTooLarge))
	require.Equal(t, core1_0.VKErrorOutOfDeviceMemory, res)
	require.Equal(t, resource.NullImage, image)

	require.Zero(t, layer.Device().HostObjectCount())
}

func TestLayerBindUnderalignedMemory(t *testing.T) {
	layer := readyLayer(t, Options{})

	buffer, _, err := layer.CreateBuffer(nil, resource.BufferCreateInfo{Size: 16})
	require.NoError(t, err)

	memory := mock_resource.EasyMockDeviceMemory(gomock.NewController(t), 4*memutils.PageSize, 256)
	res, err := layer.BindBufferMemory(buffer, memory, 0)
	requireInvalid(t, res, err)
	require.True(t, errors.Is(err, memutils.MisalignedError))

	_, _, bound := layer.Device().BufferBinding(buffer)
	require.False(t, bound)
}
