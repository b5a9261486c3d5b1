package goSession

import "errors"

var (
	// ErrInvalidConfig is returned by Build when Config.Validate fails.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrStoreRequired is returned by Build when neither a Redis client nor a store was supplied.
	ErrStoreRequired = errors.New("session store required")
	// ErrBuilderUsed is returned when Build is called twice on the same Builder.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrEngineNotReady is returned by Engine methods called on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrFlushSkipped is returned by Flush when the request context was already
	// cancelled and buffered writes were dropped.
	ErrFlushSkipped = errors.New("flush skipped")
)
