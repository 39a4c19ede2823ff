package wire

import "errors"

var (
	// ErrInsufficientData means the buffer is shorter than a committed
	// read needs: the fixed block, or a variable payload whose declared
	// length runs past the end of the slice.
	ErrInsufficientData = errors.New("wire: insufficient data")

	// ErrCorruptData means an offset-table entry is internally
	// inconsistent with the rest of the record.
	ErrCorruptData = errors.New("wire: corrupt data")

	// ErrOversizedRecord means the total encoded size exceeds the
	// schema's max size. It guards the encoder against runaway
	// application data and the decoder against malicious length claims.
	ErrOversizedRecord = errors.New("wire: oversized record")
)
