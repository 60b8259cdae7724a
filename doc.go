// Package upd turns a Go c-shared library into a transparent stand-in for
// another shared library of the same file name: every export the host
// calls is forwarded to the real library, with the option to intercept any
// individual export.
//
// The mechanical forwarding stubs are generated from a slot manifest by
// updgen; the host-facing part of a proxy is only a few lines run from the
// process-attach path:
//
//	func onAttach(selfPath string) {
//		upd.OpenDebugTerminal()
//		var cell *uintptr
//		cell = upd.RegisterCallback("DirectInput8Create", func(args []uintptr) uintptr {
//			// runs before the real DirectInput8Create
//			return upd.Forward(cell, args...)
//		})
//		upd.CreateProxy(selfPath, "")
//	}
//
// Callbacks must be registered before CreateProxy runs; CreateProxy runs
// exactly once per process. Host calls that arrive before initialization
// finishes wait on the gate, so no call is lost or misrouted.
package upd
