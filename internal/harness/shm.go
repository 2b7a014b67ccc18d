// Package harness implements the System-V shared-memory coverage harness:
// allocating an AFL-compatible bitmap region, exporting its id to the child
// via __AFL_SHM_ID, and reading the bitmap back after the child exits.
package harness

import (
	"os"
)

// BitmapSize is the target protocol's shared-memory bitmap size (a separate
// compile-time constant from the engine's internal coverage.BitmapSize — the
// instrumented target writes a fixed 65,536-byte region per spec.md §6).
const BitmapSize = 65536

// ShmIDEnv is the environment variable naming the child's shared-memory id.
const ShmIDEnv = "__AFL_SHM_ID"

// Region is an allocated shared-memory coverage region. The harness never
// retains Region's attached pointer across calls to Read — each call
// attaches, copies, and detaches.
type Region struct {
	id int
}

// attachFailedMarker is what Read returns on a failed attach; callers treat coverage as
// empty but must still remove the region.
var attachFailedMarker = []byte{}

// Alloc allocates a private IPC region of BitmapSize bytes with
// caller-only permissions (0600) and returns it. The caller must call
// Close to schedule region removal even if Read is never called.
func Alloc() (*Region, error) {
	return allocImpl()
}

// EnvPair returns the KEY=VALUE string to append to a child's environment,
// exposing the region's id as decimal ASCII.
func (r *Region) EnvPair() string {
	return ShmIDEnv + "=" + itoa(r.id)
}

// Read attaches the region, copies its bytes into outPath, and detaches.
// On attach failure it writes an empty bitmap to outPath, returns an error,
// and still removes the region via a deferred cleanup in the caller's Close.
func (r *Region) Read(outPath string) ([]byte, error) {
	data, err := r.readImpl()
	if err != nil {
		_ = os.WriteFile(outPath, attachFailedMarker, 0o600)
		return attachFailedMarker, err
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return data, err
	}
	return data, nil
}

// Close schedules the shared-memory region for removal. It is always safe
// to call, including after a failed Alloc/attach.
func (r *Region) Close() error {
	if r == nil {
		return nil
	}
	return r.closeImpl()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
