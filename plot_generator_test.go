package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawColumnCounts(t *testing.T) {
	png, err := DrawColumnCounts(clickStore(t), "host")
	require.NoError(t, err)
	require.NotEmpty(t, png)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), png[:8])
}

func TestDrawColumnCountsUnknownColumn(t *testing.T) {
	_, err := DrawColumnCounts(clickStore(t), "browser")
	assert.Error(t, err)
}
