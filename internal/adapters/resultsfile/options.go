package resultsfile

// DefaultEventCount is the number of events in the reference results file.
const DefaultEventCount = 31

// Option applies a configuration option to the Reader.
type Option func(*Reader)

// WithEventCount sets the number of results expected on every line.
func WithEventCount(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.eventCount = n
		}
	}
}

// WithKeepInactive keeps players who never scored above zero.
func WithKeepInactive() Option {
	return func(r *Reader) {
		r.keepInactive = true
	}
}
