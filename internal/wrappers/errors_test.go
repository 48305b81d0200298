// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wrappers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrsAggregatesMultiple(t *testing.T) {
	var e Errs
	require.False(t, e.Errored())
	e.Add(nil)
	require.False(t, e.Errored())

	e.Add(errors.New("first"))
	require.Equal(t, 1, e.Len())
	require.EqualError(t, e.Err(), "first")

	e.Add(errors.New("second"))
	require.Equal(t, 2, e.Len())
	require.Contains(t, e.Err().Error(), "2 errors occurred")
	require.Contains(t, e.Err().Error(), "first")
	require.Contains(t, e.Err().Error(), "second")
}
