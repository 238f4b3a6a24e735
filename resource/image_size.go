package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/memutils"
)

// texelSizes is the number of bytes a single texel of each supported format occupies
var texelSizes = map[core1_0.Format]int{
	core1_0.FormatR8UnsignedNormalized:               1,
	core1_0.FormatR8G8UnsignedNormalized:             2,
	core1_0.FormatR5G6B5UnsignedNormalizedPacked:     2,
	core1_0.FormatA1R5G5B5UnsignedNormalizedPacked:   2,
	core1_0.FormatD16UnsignedNormalized:              2,
	core1_0.FormatR8G8B8A8UnsignedNormalized:         4,
	core1_0.FormatR8G8B8A8SRGB:                       4,
	core1_0.FormatB8G8R8A8UnsignedNormalized:         4,
	core1_0.FormatB8G8R8A8SRGB:                       4,
	core1_0.FormatA8B8G8R8UnsignedIntPacked:          4,
	core1_0.FormatR32SignedFloat:                     4,
	core1_0.FormatD32SignedFloat:                     4,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt: 4,
	core1_0.FormatR16G16B16A16SignedFloat:            8,
	core1_0.FormatR32G32SignedFloat:                  8,
	core1_0.FormatD32SignedFloatS8UnsignedInt:        8,
	core1_0.FormatR32G32B32SignedFloat:               12,
	core1_0.FormatR32G32B32A32SignedFloat:            16,
}

// TexelSize returns the number of bytes one texel of format occupies, and false if the
// device does not support the format
func TexelSize(format core1_0.Format) (int, bool) {
	size, ok := texelSizes[format]
	return size, ok
}

const (
	// Linear images are stored row by row, and rows only need to be aligned for the TMU
	linearRowAlignment   uint = 16
	linearLevelAlignment uint = 16

	// Optimal images are stored in 64-byte microtiles, so both rows and mip levels are padded
	// out to a whole microtile
	optimalRowAlignment   uint = 64
	optimalLevelAlignment uint = 64
)

func mipDimension(extent int, level int) int {
	dim := extent >> level
	if dim < 1 {
		return 1
	}
	return dim
}

func isSingleTexel(extent core1_0.Extent3D, level int) bool {
	return mipDimension(extent.Width, level) == 1 &&
		mipDimension(extent.Height, level) == 1 &&
		mipDimension(extent.Depth, level) == 1
}

func sampleCount(samples core1_0.SampleCountFlags) int {
	if samples < 1 {
		return 1
	}
	return int(samples)
}

func atLeastOne(value int) int {
	if value < 1 {
		return 1
	}
	return value
}

// imageBackingSize computes the number of bytes an image's backing store occupies, rounded up
// to a whole number of pages. Each mip level is stored in full for every array layer, and
// multisampled images store every sample of every texel. Sizes that overflow an int fail with
// memutils.OverflowError.
func imageBackingSize(info *ImageCreateInfo) (int, error) {
	texelSize, ok := TexelSize(info.Format)
	if !ok {
		return 0, errors.Wrapf(ErrUnsupportedFormat, "format %d", int(info.Format))
	}

	rowAlignment, levelAlignment := linearRowAlignment, linearLevelAlignment
	if info.Tiling == core1_0.ImageTilingOptimal {
		rowAlignment, levelAlignment = optimalRowAlignment, optimalLevelAlignment
	}

	texelBytes := texelSize * sampleCount(info.Samples)
	mipLevels := atLeastOne(info.MipLevels)

	layerSize := 0
	for level := 0; level < mipLevels; level++ {
		levelSize, err := mipLevelSize(info.Extent, level, texelBytes, rowAlignment, levelAlignment)
		if err != nil {
			return 0, errors.Wrapf(err, "mip level %d", level)
		}

		// Every level past the end of the full chain is a single texel
		if isSingleTexel(info.Extent, level) {
			levelSize, err = memutils.CheckedMul(levelSize, mipLevels-level)
			if err != nil {
				return 0, err
			}
			layerSize, err = memutils.CheckedAdd(layerSize, levelSize)
			if err != nil {
				return 0, err
			}
			break
		}

		layerSize, err = memutils.CheckedAdd(layerSize, levelSize)
		if err != nil {
			return 0, err
		}
	}

	totalSize, err := memutils.CheckedMul(layerSize, atLeastOne(info.ArrayLayers))
	if err != nil {
		return 0, err
	}

	return memutils.CheckedAlignedSize(totalSize)
}

func mipLevelSize(extent core1_0.Extent3D, level int, texelBytes int, rowAlignment, levelAlignment uint) (int, error) {
	width := mipDimension(extent.Width, level)
	height := mipDimension(extent.Height, level)
	depth := mipDimension(extent.Depth, level)

	rowBytes, err := memutils.CheckedMul(width, texelBytes)
	if err != nil {
		return 0, err
	}
	rowPitch, err := memutils.CheckedAlignUp(rowBytes, rowAlignment)
	if err != nil {
		return 0, err
	}

	sliceBytes, err := memutils.CheckedMul(rowPitch, height)
	if err != nil {
		return 0, err
	}
	levelBytes, err := memutils.CheckedMul(sliceBytes, depth)
	if err != nil {
		return 0, err
	}

	return memutils.CheckedAlignUp(levelBytes, levelAlignment)
}
