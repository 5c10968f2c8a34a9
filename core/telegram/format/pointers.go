package format

// Deref safely dereferences p and returns def if p is nil.
func Deref[T any](p *T, def T) T {
	if p != nil {
		return *p
	}
	return def
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
