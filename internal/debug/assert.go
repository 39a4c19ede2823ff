package debug

import (
	"fmt"
	"runtime"
)

// Assert panics when truth does not hold. Assertions guard against programmer
// errors only; anything that can be triggered by bytes coming off the wire
// must be reported as a returned error instead.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("invalid assert args")
	}
	if !truth {
		msg := fmt.Sprintf("assertion failed(%s)", msg)
		// the panic site tends to get buried under recovery wrappers,
		// keep the caller location in the message itself.
		if _, file, line, ok := runtime.Caller(1); ok {
			msg = fmt.Sprintf("%s:%d: %s", file, line, msg)
		}
		panic(msg)
	}
}
