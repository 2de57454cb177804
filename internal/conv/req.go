package conv

// OpReq tells Forward how to store into an output.
type OpReq int

const (
	// ReqNull skips the output; Forward returns without work.
	ReqNull OpReq = iota
	// ReqWriteTo overwrites the output.
	ReqWriteTo
	// ReqWriteInplace overwrites an output that may alias an input.
	ReqWriteInplace
	// ReqAddTo accumulates into the output. Not supported.
	ReqAddTo
)

// String returns the request name.
func (r OpReq) String() string {
	switch r {
	case ReqNull:
		return "null"
	case ReqWriteTo:
		return "write_to"
	case ReqWriteInplace:
		return "write_inplace"
	case ReqAddTo:
		return "add_to"
	default:
		return "unknown"
	}
}
