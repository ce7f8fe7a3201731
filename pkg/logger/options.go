package logger

import "io"

type options struct {
	debug   bool
	json    bool
	writers []io.Writer
}

// Option configures New.
type Option func(*options)

// WithDebug enables debug level output.
func WithDebug(debug bool) Option {
	return func(o *options) { o.debug = debug }
}

// WithJSON switches to JSON lines, as used for log files.
func WithJSON(json bool) Option {
	return func(o *options) { o.json = json }
}

// WithWriter adds a destination.
func WithWriter(w io.Writer) Option {
	return WithWriters(w)
}

// WithWriters adds destinations. All of them receive every entry.
func WithWriters(ws ...io.Writer) Option {
	return func(o *options) { o.writers = append(o.writers, ws...) }
}
