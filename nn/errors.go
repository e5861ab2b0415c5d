package nn

import "errors"

// Error taxonomy shared by the network, optimizer and trainer. Callers test
// with errors.Is; the returned errors wrap these with context.
var (
	// ErrInvalidConfig reports a malformed layer specification.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrShapeMismatch reports a vector or matrix whose length disagrees
	// with the declared layer units.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidInput reports empty or mismatched training arrays.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNumericAnomaly reports a non-finite loss or prediction.
	ErrNumericAnomaly = errors.New("numeric anomaly")
)
