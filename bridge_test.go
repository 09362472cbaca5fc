// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand_test

import (
	"testing"

	"code.hybscloud.com/kont"
	"code.hybscloud.com/strand"
)

// TestReifyReflectRoundTrip exercises the two directions of the Cont/Expr
// bridge directly: Reify turns a Cont-world body into Expr-world and back
// through Reflect must behave identically to the original body.
func TestReifyReflectRoundTrip(t *testing.T) {
	t.Parallel()
	ch := strand.NewChannel[int](strand.ChannelConfig{Capacity: 1})
	runSync(strand.SendThen(ch, 9, kont.Pure(struct{}{})))

	body := strand.Receive(ch)
	expr := strand.Reify(body)
	reflected := strand.Reflect(expr)

	r := runSync(reflected)
	if r.Value != 9 {
		t.Fatalf("got %d, want 9", r.Value)
	}
}
