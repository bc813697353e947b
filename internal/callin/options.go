package callin

import "github.com/Iron-Ham/callin/internal/logging"

// Option configures a Linkage.
type Option func(*Linkage)

// WithSuperCallOffset sets the distance between a method's dispatch slot
// and its super-call slot. Values below one are ignored.
func WithSuperCallOffset(offset int32) Option {
	return func(l *Linkage) {
		if offset >= 1 {
			l.superOffset = offset
		}
	}
}

// WithLogger sets the linkage's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Linkage) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithStatic sets the dispatcher for static methods of the base.
func WithStatic(d StaticDispatcher) BaseOption {
	return func(b *Base) { b.static = d }
}
