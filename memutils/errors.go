package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// MisalignedError is the error returned when an offset or size does not sit on a required alignment boundary
var MisalignedError error = errors.New("value is not aligned")

// OverflowError is the error returned when a size computation does not fit in an int
var OverflowError error = errors.New("size computation overflowed")
