// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"
)

// JoinAll implements spec §4.H's collection form: join(collection, dur,
// unit). totalTimeout is a single budget spent across every strand in
// order, decremented by the actual elapsed time of each prior join rather
// than reset per strand. Results for strands joined before the budget runs
// out are returned alongside the aggregated error; results past that point
// are left at their zero value, matching scenario 7's "f1 and f2's results
// are not required to be returned" — only guaranteed for strands that
// joined before the timeout fired.
func JoinAll(strands []Strand, totalTimeout time.Duration) ([]any, error) {
	results := make([]any, len(strands))
	remaining := totalTimeout

	var errs *multierror.Error
	for i, s := range strands {
		if remaining <= 0 {
			errs = multierror.Append(errs, ErrTimeout)
			break
		}
		start := time.Now()
		v, err := Join(s, remaining)
		remaining -= time.Since(start)

		if err != nil {
			errs = multierror.Append(errs, err)
			if errors.Is(err, ErrTimeout) {
				break
			}
			continue
		}
		results[i] = v
	}
	return results, errs.ErrorOrNil()
}
