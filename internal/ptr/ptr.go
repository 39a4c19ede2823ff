package ptr

// To returns a pointer to v. Handy for taking the address of literals and of
// values that optional message fields want as pointers.
func To[T any](v T) *T {
	return &v
}
