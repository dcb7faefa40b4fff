package option

// Option configures a value of type T.
type Option[T any] func(*T) error

// Apply runs each non nil option against cfg, stopping at the first error.
func Apply[T any](cfg *T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return err
		}
	}
	return nil
}
