// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// currentRegistry maps the calling OS goroutine to the Strand bound to it
// via Go. Fibers never resume on a goroutine of their own (they are driven
// by worker continuations, see scheduler.go), so this registry only ever
// holds thread strands; Current reports nil for a goroutine that never
// called Go.
var currentRegistry sync.Map // map[uint64]*threadStrand

// goroutineID extracts the calling goroutine's numeric id from the
// "goroutine N [state]:" header that runtime.Stack always emits first.
// There is no public runtime API for this; parsing the debug header is
// the conventional workaround used throughout the Go ecosystem.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

func registerCurrent(s *threadStrand) {
	currentRegistry.Store(goroutineID(), s)
}

func unregisterCurrent() {
	currentRegistry.Delete(goroutineID())
}
