package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTxHash(t *testing.T) {
	assert.True(t, isTxHash("0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"))
	assert.False(t, isTxHash("88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"))
	assert.False(t, isTxHash("0x1234"))
	assert.False(t, isTxHash("0xzz"))
}
