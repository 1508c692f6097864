package flamegraph

import (
	"strconv"
	"time"
)

// UnknownFrame is the name given to frames that carry no usable information.
const UnknownFrame = "UNKNOWN"

// Frame is a single raw stack frame as reported by the sampling source.
type Frame struct {
	Class    string
	Function string
	File     string
	Line     int
}

// Sample is a captured call stack. Frames are ordered from the outermost
// call to the innermost one.
type Sample struct {
	Frames []Frame
	// Offset is the time elapsed since the start of the run.
	Offset time.Duration
	// Weight is the number of samples this stack stands for.
	// Values below 1 count as 1.
	Weight int64
}

func (s Sample) weight() int64 {
	if s.Weight < 1 {
		return 1
	}
	return s.Weight
}

// FrameName renders a frame the way it is shown in flame graphs.
//
// Frames without class and function are named after their source file, which
// folds distinct closures of the same file together unless withLines is set.
func FrameName(f Frame, withLines bool) string {
	switch {
	case f.Class != "" && f.Function != "":
		return f.Class + "::" + f.Function
	case f.Function != "":
		return f.Function
	case f.File != "":
		if withLines && f.Line > 0 {
			return f.File + ":" + strconv.Itoa(f.Line)
		}
		return f.File
	default:
		return UnknownFrame
	}
}
