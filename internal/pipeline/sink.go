package pipeline

import "context"

// Sink receives the records of a finished batch.
type Sink interface {
	Name() string
	Write(ctx context.Context, result *BatchResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, result *BatchResult) error
}

// Name implements Sink.
func (f SinkFunc) Name() string { return f.SinkName }

// Write implements Sink.
func (f SinkFunc) Write(ctx context.Context, result *BatchResult) error { return f.Fn(ctx, result) }
