// Package validation sits between an application and a resource.Device, checking every
// precondition the Device treats as a contract violation and reporting failures as errors
// instead of panics. It also owns the checks the Device deliberately does not make, such as
// whether a view's range lies within the buffer or image it views.
package validation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/resource"
	"golang.org/x/exp/slog"
)

// ErrInvalidOperation marks every error the Layer returns in place of a contract violation.
// Test for it with errors.Is.
var ErrInvalidOperation = errors.New("invalid operation")

// Options contains optional settings when creating a Layer
type Options struct {
	// CheckViewRanges enables checking that buffer view offsets and ranges, and image view
	// subresource ranges, lie within the resource being viewed
	CheckViewRanges bool
}

// Layer validates calls before forwarding them to a resource.Device. Calls that pass
// validation behave exactly as they would on the Device. Calls that fail are not forwarded,
// and return core1_0.VKErrorUnknown with an error marked with ErrInvalidOperation.
type Layer struct {
	logger  *slog.Logger
	device  *resource.Device
	options Options
}

// New creates a new Layer over device
func New(logger *slog.Logger, device *resource.Device, options Options) (*Layer, error) {
	if logger == nil {
		return nil, errors.New("validation.New requires a non-nil logger")
	}
	if device == nil {
		return nil, errors.New("validation.New requires a non-nil device")
	}

	return &Layer{
		logger:  logger,
		device:  device,
		options: options,
	}, nil
}

// Device returns the resource.Device that calls are forwarded to
func (l *Layer) Device() *resource.Device {
	return l.device
}

func (l *Layer) invalid(operation string, err error) (common.VkResult, error) {
	err = errors.Mark(errors.Wrap(err, operation), ErrInvalidOperation)
	l.logger.LogAttrs(context.Background(), slog.LevelWarn, "[VALIDATION] "+operation, slog.String("error", err.Error()))

	return core1_0.VKErrorUnknown, err
}

func (l *Layer) invalidf(operation string, format string, args ...any) (common.VkResult, error) {
	return l.invalid(operation, errors.Newf(format, args...))
}

func checkSharingMode(sharingMode core1_0.SharingMode, queueFamilyIndices []uint32) error {
	if sharingMode == core1_0.SharingModeConcurrent && len(queueFamilyIndices) < 2 {
		return errors.Newf("concurrent sharing requires at least 2 queue family indices, but %d were provided", len(queueFamilyIndices))
	}

	return nil
}
