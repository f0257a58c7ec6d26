package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorContains checks that err is non-nil and mentions expected.
func AssertErrorContains(t *testing.T, err error, expected string) {
	t.Helper()
	require.Error(t, err)
	assert.Contains(t, err.Error(), expected)
}

// AssertScore compares trust scores to two decimal places.
func AssertScore(t *testing.T, expected float64, actual *float64) {
	t.Helper()
	require.NotNil(t, actual, "expected a trust score")
	assert.InDelta(t, expected, *actual, 0.005)
}
