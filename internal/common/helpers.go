package common

// ToPtr returns a pointer to a copy of x, handy for optional SDK fields.
func ToPtr[T any](x T) *T {
	return &x
}

// ValueOrEmpty dereferences s, returning "" for nil.
func ValueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}
