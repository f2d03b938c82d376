package crypto

import "runtime"

// Wipe overwrites b with zeros. Best effort: the KeepAlive and the noinline
// hint discourage the compiler from eliding a store to memory it considers
// dead, which is exactly what key material is right before release.
//
//go:noinline
func Wipe(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] ^= b[i]
	}
	runtime.KeepAlive(&b)
}
