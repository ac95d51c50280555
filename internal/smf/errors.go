package smf

import "errors"

// Sentinel errors for the SMF parser, matching its documented failure
// modes. Callers branch on the error value with errors.Is, not on
// message text, following a closed-sum-of-error-kinds pattern.
var (
	// ErrBadHeader is returned when the first four bytes are not "MThd"
	// or the header payload size is not exactly six bytes.
	ErrBadHeader = errors.New("smf: bad header")

	// ErrTruncatedChunk is returned when a declared chunk length exceeds
	// the remaining bytes in the stream.
	ErrTruncatedChunk = errors.New("smf: truncated chunk")

	// ErrBadVarlen is returned when a variable-length quantity exceeds
	// four bytes without terminating.
	ErrBadVarlen = errors.New("smf: malformed variable-length quantity")

	// ErrTooShort is returned for inputs shorter than the minimum valid
	// SMF (14 bytes: 8-byte MThd preamble + 6-byte payload). Parse wraps
	// it together with ErrBadHeader, so errors.Is matches either.
	ErrTooShort = errors.New("smf: input shorter than minimum header size")
)
