package memutils

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
)

const (
	// PageSize is the allocation granularity of the hardware memory manager. Every buffer
	// object handed out by the kernel consumes a whole number of pages, so resource
	// backing regions are sized and aligned to it.
	PageSize int = 4096

	// MaxAlignedSize is the largest page-aligned size representable in an int. Sizes above it
	// cannot be rounded up to a whole page.
	MaxAlignedSize int = math.MaxInt &^ (PageSize - 1)
)

type Number interface {
	~int | ~uint
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// CheckedAlignUp is AlignUp for a non-negative value, failing with OverflowError when the
// aligned value does not fit in an int
func CheckedAlignUp(value int, alignment uint) (int, error) {
	if alignment > 1 && value > math.MaxInt-int(alignment-1) {
		return 0, cerrors.Wrapf(OverflowError, "aligning %d to %d", value, alignment)
	}
	return AlignUp(value, alignment), nil
}

// CheckedMul multiplies two non-negative values, failing with OverflowError when the product
// does not fit in an int
func CheckedMul(left, right int) (int, error) {
	if left != 0 && right > math.MaxInt/left {
		return 0, cerrors.Wrapf(OverflowError, "multiplying %d by %d", left, right)
	}
	return left * right, nil
}

// CheckedAdd adds two non-negative values, failing with OverflowError when the sum does not
// fit in an int
func CheckedAdd(left, right int) (int, error) {
	if right > math.MaxInt-left {
		return 0, cerrors.Wrapf(OverflowError, "adding %d to %d", right, left)
	}
	return left + right, nil
}

// IsAligned returns true if value is a multiple of alignment. Unlike AlignUp, alignment does not need to be a power of two. An alignment of 0 is treated as 1.
func IsAligned(value int, alignment uint) bool {
	if alignment <= 1 {
		return true
	}
	return value%int(alignment) == 0
}

// AlignedSize rounds a requested resource size up to the nearest multiple of PageSize.
// Negative sizes are treated as 0. Sizes above MaxAlignedSize have no aligned size, and
// panic: use CheckedAlignedSize where the size comes from outside the driver.
func AlignedSize(size int) int {
	aligned, err := CheckedAlignedSize(size)
	if err != nil {
		panic(cerrors.NewAssertionErrorWithWrappedErrf(err, "AlignedSize"))
	}
	return aligned
}

// CheckedAlignedSize rounds size up to the nearest multiple of PageSize, failing with
// OverflowError when size is larger than MaxAlignedSize. Negative sizes are treated as 0.
func CheckedAlignedSize(size int) (int, error) {
	if size <= 0 {
		return 0, nil
	}
	if size > MaxAlignedSize {
		return 0, cerrors.Wrapf(OverflowError, "%d bytes cannot be rounded up to a whole page", size)
	}
	return AlignUp(size, uint(PageSize)), nil
}
