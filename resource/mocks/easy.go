package mock_resource

import (
	"go.uber.org/mock/gomock"
)

// EasyMockDeviceMemory returns a MockDeviceMemory that reports size and alignment for as many
// calls as are made
func EasyMockDeviceMemory(ctrl *gomock.Controller, size int, alignment uint) *MockDeviceMemory {
	memory := NewMockDeviceMemory(ctrl)
	memory.EXPECT().Size().Return(size).AnyTimes()
	memory.EXPECT().Alignment().Return(alignment).AnyTimes()

	return memory
}
