// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package strand

// Primitive channel specializations (spec §6 "Primitive channels"), unbounded
// by default. There is a single generic Channel[T] underneath; these are
// thin aliases kept because the spec names them as part of the external
// surface, not because the implementation needs type-specific code paths.

type (
	Int32Channel   = Channel[int32]
	Int64Channel   = Channel[int64]
	Float32Channel = Channel[float32]
	Float64Channel = Channel[float64]
)

func unboundedConfig() ChannelConfig {
	return ChannelConfig{Capacity: -1, Overflow: OverflowBlock, SingleConsumer: true}
}

// NewInt32Channel constructs an unbounded int32 channel, the default per
// spec §6 "defaults to unbounded (capacity = -1)".
func NewInt32Channel() *Int32Channel { return NewChannel[int32](unboundedConfig()) }

// NewInt64Channel constructs an unbounded int64 channel.
func NewInt64Channel() *Int64Channel { return NewChannel[int64](unboundedConfig()) }

// NewFloat32Channel constructs an unbounded float32 channel.
func NewFloat32Channel() *Float32Channel { return NewChannel[float32](unboundedConfig()) }

// NewFloat64Channel constructs an unbounded float64 channel.
func NewFloat64Channel() *Float64Channel { return NewChannel[float64](unboundedConfig()) }
