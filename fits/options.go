package fits

import "go.uber.org/zap"

// Option configures a File at open or create time.
type Option func(*File)

// WithChecksumVerification verifies the CHECKSUM and DATASUM cards of
// every HDU during Open; a mismatch fails the open with ErrChecksum.
// HDUs carrying no checksum cards pass.
func WithChecksumVerification() Option {
	return func(f *File) {
		f.verifyOnOpen = true
	}
}

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(f *File) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithStrict makes structural problems fatal: malformed cards,
// truncated headers and truncated data regions become errors instead
// of degraded (corrupted or clamped) HDUs.
func WithStrict() Option {
	return func(f *File) {
		f.strict = true
	}
}

// WithChecksum stamps CHECKSUM and DATASUM cards into every HDU
// whenever the file is written.
func WithChecksum() Option {
	return func(f *File) {
		f.stamp = true
	}
}
