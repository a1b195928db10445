package fl

import "errors"

var (
	ErrProtocolMismatch      = errors.New("result round does not match dispatched task")
	ErrMalformedResult       = errors.New("malformed result")
	ErrQuorumNotMet          = errors.New("quorum not met")
	ErrShapeMismatch         = errors.New("payload shape mismatch")
	ErrUninitializedSelector = errors.New("selector has not considered any round")
	ErrNoResults             = errors.New("no results provided for aggregation")
	ErrZeroWeight            = errors.New("total aggregation weight is zero")
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrInvalidState          = errors.New("invalid global state")
	ErrUnknownStrategy       = errors.New("unknown strategy")
)
