package tap_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
	"github.com/Alia5/ghostkey/platform/sim"
	"github.com/Alia5/ghostkey/tap"
)

func swallowAll(platform.TapEvent) platform.Verdict { return platform.Swallow }

func onLoop(p *sim.Platform, fn func()) { platform.Call(p, fn) }

func TestInstallUninstall(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	c := tap.NewController(p, 0, slog.Default())
	assert.Equal(t, tap.Uninstalled, c.State())

	onLoop(p, func() { assert.NoError(t, c.Install(swallowAll)) })
	assert.Equal(t, tap.Armed, c.State())
	assert.True(t, p.TapEnabled())
	assert.Equal(t, platform.Swallow, p.Press(keymap.KeyA))

	onLoop(p, func() { assert.Error(t, c.Install(swallowAll)) })

	onLoop(p, c.Disable)
	assert.Equal(t, tap.Disabled, c.State())
	assert.Equal(t, platform.Pass, p.Press(keymap.KeyA))

	onLoop(p, c.Enable)
	assert.Equal(t, tap.Armed, c.State())

	onLoop(p, c.Uninstall)
	assert.Equal(t, tap.Uninstalled, c.State())
	assert.Equal(t, 0, p.Taps())
	assert.Equal(t, platform.Pass, p.Press(keymap.KeyA))

	onLoop(p, c.Uninstall)
	assert.Equal(t, tap.Uninstalled, c.State())
}

func TestInstallWithoutPermission(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	p.SetTrusted(false)
	c := tap.NewController(p, 0, slog.Default())

	var err error
	onLoop(p, func() { err = c.Install(swallowAll) })
	require.ErrorIs(t, err, tap.ErrTapCreation)
	assert.Contains(t, err.Error(), "permission")
	assert.Equal(t, tap.Uninstalled, c.State())
	assert.Equal(t, 0, p.Taps())
}

func TestInstallFailureFromPlatform(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	p.FailTap(errors.New("CGEventTapCreate returned NULL"))
	c := tap.NewController(p, 0, slog.Default())

	var err error
	onLoop(p, func() { err = c.Install(swallowAll) })
	assert.ErrorIs(t, err, tap.ErrTapCreation)
	assert.Contains(t, err.Error(), "CGEventTapCreate")
}

func TestRecoveryBudget(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	c := tap.NewController(p, 3, slog.Default())
	onLoop(p, func() { assert.NoError(t, c.Install(swallowAll)) })

	for i := 1; i <= 3; i++ {
		onLoop(p, func() { assert.NoError(t, c.HandleSystemDisable(platform.KindTapDisabledByTimeout)) })
		assert.Equal(t, tap.Armed, c.State())
		assert.Equal(t, i, c.Attempts())
		assert.True(t, p.TapEnabled())
	}

	var err error
	onLoop(p, func() { err = c.HandleSystemDisable(platform.KindTapDisabledByUserInput) })
	require.ErrorIs(t, err, tap.ErrSystemDisabledTap)
	assert.Equal(t, tap.Disabled, c.State())

	onLoop(p, c.Uninstall)
	assert.Equal(t, tap.Uninstalled, c.State())
	assert.Equal(t, 0, c.Attempts())
}

func TestRecoveryResetsAfterHealthyEvents(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	c := tap.NewController(p, 3, slog.Default())
	onLoop(p, func() { assert.NoError(t, c.Install(swallowAll)) })

	for i := 0; i < 10; i++ {
		onLoop(p, func() {
			assert.NoError(t, c.HandleSystemDisable(platform.KindTapDisabledByTimeout))
			c.ResetRecovery()
		})
	}
	assert.Equal(t, tap.Armed, c.State())
	onLoop(p, c.Uninstall)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninstalled", tap.Uninstalled.String())
	assert.Equal(t, "armed", tap.Armed.String())
	assert.Equal(t, "disabled", tap.Disabled.String())
}
