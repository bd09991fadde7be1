package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/Alia5/ghostkey/internal/registry"
	"github.com/Alia5/ghostkey/platform"
)

func TestSimRegistered(t *testing.T) {
	assert.Contains(t, platform.Names(), "sim")
	p, err := platform.Open("sim", nil)
	if assert.NoError(t, err) {
		assert.Equal(t, "sim", p.Name())
		assert.NoError(t, p.Close())
	}
}
