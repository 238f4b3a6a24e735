package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
)

var (
	// ErrOutOfHostMemory is returned alongside core1_0.VKErrorOutOfHostMemory when the device's
	// host object budget cannot hold a new object
	ErrOutOfHostMemory = errors.New("out of host memory")
	// ErrAllocationCallbacksUnsupported is returned alongside core1_0.VKErrorFeatureNotPresent when
	// a non-nil *driver.AllocationCallbacks is passed to the device
	ErrAllocationCallbacksUnsupported = errors.New("custom host allocation callbacks are not supported")
	// ErrUnsupportedFormat is returned alongside core1_0.VKErrorFormatNotSupported when an image
	// is described with a format whose texel size is unknown to the device
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrResourceTooLarge is returned alongside core1_0.VKErrorOutOfDeviceMemory when the
	// backing size of a buffer or image cannot be represented
	ErrResourceTooLarge = errors.New("resource too large")
)

// IsContractViolation returns true if a value recovered from a panic was raised by one of the
// Device's precondition checks. Contract violations are programming errors: the caller passed
// a null or destroyed handle, rebound a resource, or bound at an invalid offset.
func IsContractViolation(recovered any) bool {
	err, isError := recovered.(error)
	return isError && errors.HasAssertionFailure(err)
}

func contractViolation(format string, args ...any) {
	panic(errors.AssertionFailedf(format, args...))
}

func checkAllocationCallbacks(callbacks *driver.AllocationCallbacks, operation string) (common.VkResult, error) {
	if callbacks != nil {
		return core1_0.VKErrorFeatureNotPresent, errors.Wrapf(ErrAllocationCallbacksUnsupported, "%s", operation)
	}

	return core1_0.VKSuccess, nil
}
