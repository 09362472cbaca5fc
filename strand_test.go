// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand_test

import (
	"testing"
	"time"

	"code.hybscloud.com/strand"
)

func TestGoStrandIsAliveThenTerminates(t *testing.T) {
	t.Parallel()
	started := make(chan struct{})
	s := strand.Go("t", func(self strand.Strand) {
		close(started)
		time.Sleep(20 * time.Millisecond)
	})
	<-started
	if !s.IsAlive() {
		t.Fatal("strand should be alive while its body is running")
	}
	if _, err := strand.Join(s); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if s.IsAlive() {
		t.Fatal("strand should be terminated after Join returns")
	}
}

func TestCurrentReturnsBoundStrand(t *testing.T) {
	t.Parallel()
	result := make(chan bool, 1)
	s := strand.Go("self-aware", func(self strand.Strand) {
		result <- strand.Current() == self
	})
	strand.Join(s)
	if !<-result {
		t.Fatal("Current() inside the goroutine should equal the strand Go returned")
	}
}

func TestCurrentIsNilOutsideGo(t *testing.T) {
	t.Parallel()
	if strand.Current() != nil {
		t.Fatal("Current() should be nil for a goroutine that never called Go")
	}
}

func TestStateStringValues(t *testing.T) {
	t.Parallel()
	cases := map[strand.State]string{
		strand.StateNew:        "new",
		strand.StateRunnable:   "runnable",
		strand.StateParked:     "parked",
		strand.StateTerminated: "terminated",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
