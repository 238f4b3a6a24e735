package memutils

// Validatable is used by the DebugValidate method to allow it to act upon
// all types with a Validate method. Device objects and their handle tables
// implement it so that debug builds can check their bookkeeping after every mutation.
type Validatable interface {
	Validate() error
}
