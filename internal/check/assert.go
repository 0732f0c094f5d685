// Package check provides fatal assertions for registry contract
// violations. A failed assertion is a programming error — lock not held,
// counter kind out of range, mismatched handle — never a runtime
// condition, so the assertions are active in every build.
package check

import "fmt"

// Assert panics if cond is false.
func Assert(cond bool, msg string) {
	if !cond {
		panic("contract violation: " + msg)
	}
}

// Assertf panics if cond is false with a formatted message.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("contract violation: " + fmt.Sprintf(format, args...))
	}
}
