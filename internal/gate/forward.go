package gate

import "github.com/ebitengine/purego"

// forwardCall invokes the resolved address with the original arguments and
// returns its primary result unmodified. Argument count and types must
// match the real export; a mismatch is an undetectable caller-side build
// error.
func forwardCall(addr uintptr, args []uintptr) uintptr {
	r1, _, _ := purego.SyscallN(addr, args...)
	return r1
}

// ForwardTo is the forwarding primitive handed to callbacks: it calls the
// real function behind a stable cell's address.
func ForwardTo(addr uintptr, args ...uintptr) uintptr {
	if addr == 0 {
		return 0
	}
	return forwardCall(addr, args)
}
