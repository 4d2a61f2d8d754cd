package dedupe

// Option configures the in-memory Deduper.
type Option func(*fifo)

// WithMaxSize bounds the number of remembered ids. Values <= 0 remove the
// bound.
func WithMaxSize(maxSize int) Option {
	return func(d *fifo) {
		d.maxSize = maxSize
	}
}
