package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsFold(t *testing.T) {
	assert.True(t, containsFold("Buy Milk", "milk"))
	assert.True(t, containsFold("buy milk", "MILK"))
	assert.False(t, containsFold("buy milk", "bread"))
	assert.True(t, containsFold("anything", ""))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "12345678", shortID("123456789abcdef"))
	assert.Equal(t, "short", shortID("short"))
	assert.Equal(t, "", shortID(""))
}
