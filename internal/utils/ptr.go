package utils

// Ptr returns a pointer to a copy of v. Useful for building patches whose
// optional fields are pointers.
func Ptr[T any](v T) *T {
	return &v
}
