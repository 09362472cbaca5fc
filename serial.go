// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

import "code.hybscloud.com/atomix"

// counter is the global monotonic counter backing fiber serials.
var counter atomix.Uint32
