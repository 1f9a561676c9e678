package model

import "errors"

// Error taxonomy for the campaign driver. Only ErrConnectionLost
// (internal/transport) and ErrInvalidRange (internal/inject) are
// returned by code in this module; the others name the remaining
// failure classes and are not returned anywhere. internal/campaign
// turns failures into state transitions rather than panics.
var (
	// ErrConnectionLost covers a closed socket or a short read on a
	// frame's length header.
	ErrConnectionLost = errors.New("connection lost")

	// ErrQueueTimeout covers an expected message that did not arrive
	// within the budget given to a channel receive.
	ErrQueueTimeout = errors.New("queue timeout")

	// ErrReadFailed covers the debugger agent returning a non-hex
	// payload where a hex value was required.
	ErrReadFailed = errors.New("read failed")

	// ErrInvalidRange covers an injection target that falls inside a
	// forbidden memory range.
	ErrInvalidRange = errors.New("invalid address for reading/writing")

	// ErrUnrecognizedCommand covers the agent receiving a command it
	// does not implement.
	ErrUnrecognizedCommand = errors.New("invalid command")

	// ErrRestartFailed covers the emulator wrapper being unable to bind
	// its ports again after a restart. Fatal to the campaign.
	ErrRestartFailed = errors.New("restart failed")

	// ErrDecoderReject is not actually returned by the decoders (an
	// unrecognized line becomes Invalid{raw}, never an error) but is
	// kept as a named sentinel so callers that want to treat Invalid
	// outcomes as an error condition have something to compare against.
	ErrDecoderReject = errors.New("decoder did not recognize line")
)
