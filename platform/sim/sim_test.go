package sim_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
	"github.com/Alia5/ghostkey/platform/sim"
)

func TestPerformRunsInOrder(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		p.Perform(func() { got = append(got, i) })
	}
	p.Sync()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestPerformAfterCloseRunsInline(t *testing.T) {
	p := sim.New(slog.Default())
	require.NoError(t, p.Close())

	ran := false
	p.Perform(func() { ran = true })
	assert.True(t, ran)
}

func TestPressWithoutTapPassesThrough(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	assert.Equal(t, platform.Pass, p.Press(keymap.KeyA))
	require.Len(t, p.Passthrough(), 1)
	assert.Equal(t, keymap.KeyA, p.Passthrough()[0].Code)
}

func TestTapInterceptsAndSwallows(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	var seen []platform.TapEvent
	tp, err := p.CreateTap(platform.TapOptions{Consume: true, KeyDownOnly: true}, func(ev platform.TapEvent) platform.Verdict {
		seen = append(seen, ev)
		return platform.Swallow
	})
	require.NoError(t, err)

	// not attached yet
	assert.Equal(t, platform.Pass, p.Press(keymap.KeyB))

	require.NoError(t, tp.AddToRunLoop())
	tp.Enable(true)
	assert.True(t, p.TapEnabled())
	assert.Equal(t, platform.Swallow, p.Press(keymap.KeyC, sim.Autorepeat()))
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Autorepeat)

	assert.True(t, p.ForceDisable(platform.KindTapDisabledByTimeout))
	assert.False(t, tp.Enabled())
	require.Len(t, seen, 2)
	assert.Equal(t, platform.KindTapDisabledByTimeout, seen[1].Kind)

	tp.RemoveFromRunLoop()
	tp.Invalidate()
	assert.Equal(t, 0, p.Taps())
	assert.False(t, p.ForceDisable(platform.KindTapDisabledByTimeout))
	assert.Error(t, tp.AddToRunLoop())
}

func TestSourceEchoesKeyDownThroughTap(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	var echoes []int64
	tp, err := p.CreateTap(platform.TapOptions{Consume: true}, func(ev platform.TapEvent) platform.Verdict {
		echoes = append(echoes, ev.UserData)
		return platform.Pass
	})
	require.NoError(t, err)
	require.NoError(t, tp.AddToRunLoop())
	tp.Enable(true)

	src, err := p.NewSource(platform.SentinelTag)
	require.NoError(t, err)
	assert.Equal(t, 1, p.OpenSources())

	require.NoError(t, src.Post(platform.KeyEvent{Code: keymap.KeyH, Down: true, Flags: platform.FlagShift, Text: platform.TextOf('H')}))
	assert.Equal(t, []keymap.KeyCode{keymap.KeyH}, p.Held())
	require.NoError(t, src.Post(platform.KeyEvent{Code: keymap.KeyH, Text: platform.TextOf('H')}))
	p.Sync()

	assert.Empty(t, p.Held())
	assert.Equal(t, []int64{platform.SentinelTag}, echoes)
	assert.Equal(t, "H", p.Typed())

	require.NoError(t, src.Close())
	assert.Equal(t, 0, p.OpenSources())
	assert.ErrorIs(t, src.Post(platform.KeyEvent{Code: keymap.KeyH, Down: true}), sim.ErrSourceClosed)
}

func TestFailureInjection(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	boom := errors.New("boom")
	p.FailSource(boom)
	_, err := p.NewSource(1)
	assert.ErrorIs(t, err, boom)
	p.FailSource(nil)

	p.SetTrusted(false)
	_, err = p.CreateTap(platform.TapOptions{}, func(platform.TapEvent) platform.Verdict { return platform.Pass })
	assert.Error(t, err)
	ok, hint := p.Trusted()
	assert.False(t, ok)
	assert.NotEmpty(t, hint)
	p.SetTrusted(true)

	src, err := p.NewSource(1)
	require.NoError(t, err)
	p.FailPost(func(ev platform.KeyEvent) error {
		if !ev.Down {
			return boom
		}
		return nil
	})
	assert.NoError(t, src.Post(platform.KeyEvent{Code: keymap.KeyA, Down: true}))
	assert.ErrorIs(t, src.Post(platform.KeyEvent{Code: keymap.KeyA}), boom)
	assert.Equal(t, []keymap.KeyCode{keymap.KeyA}, p.Held())
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, platform.Names(), sim.Name)
	p, err := platform.Open(sim.Name, slog.Default())
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, sim.Name, p.Name())
}
