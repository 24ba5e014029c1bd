package languageutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "torso", NormalizeToken("  TORSO "))
	assert.Equal(t, "", NormalizeToken("   "))
	assert.Equal(t, "été", Lower("ÉTÉ"))
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Street Style", Title("street style"))
}
