package harness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/device-next/devicecheck/harness"
)

func TestHarness_ControllersShareServices(t *testing.T) {
	_, h, _ := newTestHarness(harness.Options{})

	assert.Equal(t, []string{"camera", "microphone", "speaker", "keyboard", "mouse", "touch", "battery"}, h.TestNames())

	for _, name := range h.TestNames() {
		ctrl, err := h.Controller(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, ctrl.TestName())
		assert.Equal(t, harness.StateUninitialized, ctrl.State())
	}

	_, err := h.Controller("hologram")
	assert.Error(t, err)
}

func TestHarness_ControllersAreIndependent(t *testing.T) {
	_, h, _ := newTestHarness(harness.Options{})

	a, err := h.Controller(harness.TestCamera)
	require.NoError(t, err)
	b, err := h.Controller(harness.TestCamera)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.Session().ID, b.Session().ID)
}
