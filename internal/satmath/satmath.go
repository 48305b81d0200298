// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package satmath provides the saturating arithmetic helpers the
// original Rust replayer leans on (Rust's u64::saturating_add), since Go
// has no built-in saturating integer ops.
package satmath

import "math"

// AddU64 returns a+b, clamped to math.MaxUint64 on overflow.
func AddU64(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return math.MaxUint64
	}
	return sum
}
