package inject_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/ghostkey/inject"
	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform"
	"github.com/Alia5/ghostkey/platform/sim"
)

type sleepRecorder struct{ slept []time.Duration }

func (s *sleepRecorder) sleep(d time.Duration) { s.slept = append(s.slept, d) }

func newInjector(t *testing.T) (*sim.Platform, *inject.Source, *inject.Injector, *sleepRecorder) {
	t.Helper()
	p := sim.New(slog.Default())
	t.Cleanup(func() { _ = p.Close() })
	src, err := inject.OpenSource(p, platform.SentinelTag)
	require.NoError(t, err)
	rec := &sleepRecorder{}
	inj := inject.New(src, inject.WithSleep(rec.sleep), inject.WithPacing(inject.DefaultPacing()))
	return p, src, inj, rec
}

func TestInjectCharacters(t *testing.T) {
	tests := []struct {
		name  string
		char  rune
		code  keymap.KeyCode
		flags platform.Flags
	}{
		{name: "lowercase", char: 'i', code: keymap.KeyI, flags: platform.FlagNone},
		{name: "uppercase holds shift on down only", char: 'H', code: keymap.KeyH, flags: platform.FlagShift},
		{name: "shifted symbol", char: '!', code: keymap.Key1, flags: platform.FlagShift},
		{name: "newline presses return", char: '\n', code: keymap.KeyReturn, flags: platform.FlagNone},
		{name: "tab", char: '\t', code: keymap.KeyTab, flags: platform.FlagNone},
		{name: "space", char: ' ', code: keymap.KeySpace, flags: platform.FlagNone},
		{name: "unmapped rides on space", char: 'é', code: keymap.KeySpace, flags: platform.FlagNone},
		{name: "astral plane rune", char: '🙂', code: keymap.KeySpace, flags: platform.FlagNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, inj, rec := newInjector(t)

			require.NoError(t, inj.Inject(tt.char))

			posted := p.Posted()
			require.Len(t, posted, 2)
			down, up := posted[0], posted[1]

			assert.True(t, down.Down)
			assert.Equal(t, tt.code, down.Code)
			assert.Equal(t, tt.flags, down.Flags)
			assert.Equal(t, []rune{tt.char}, utf16.Decode(down.Text))
			assert.Equal(t, platform.SentinelTag, down.UserData)

			assert.False(t, up.Down)
			assert.Equal(t, tt.code, up.Code)
			assert.Equal(t, platform.FlagNone, up.Flags)
			assert.Equal(t, down.Text, up.Text)
			assert.Equal(t, platform.SentinelTag, up.UserData)

			assert.False(t, inj.Pending().Pending)
			assert.Empty(t, p.Held())
			assert.Equal(t, []time.Duration{8 * time.Millisecond}, rec.slept)
		})
	}
}

func TestInjectSurrogatePairPayload(t *testing.T) {
	p, _, inj, _ := newInjector(t)
	require.NoError(t, inj.Inject('🙂'))
	assert.Len(t, p.Posted()[0].Text, 2)
	p.Sync()
	assert.Equal(t, "🙂", p.Typed())
}

func TestInjectUpFailureLeavesPendingKey(t *testing.T) {
	p, _, inj, rec := newInjector(t)
	boom := errors.New("post refused")
	p.FailPost(func(ev platform.KeyEvent) error {
		if !ev.Down {
			return boom
		}
		return nil
	})

	err := inj.Inject('a')
	var failed *inject.InjectionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 'a', failed.Char)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.slept)

	assert.Equal(t, inject.PendingKey{Code: keymap.KeyA, Text: platform.TextOf('a'), Pending: true}, inj.Pending())
	assert.Equal(t, []keymap.KeyCode{keymap.KeyA}, p.Held())

	p.FailPost(nil)
	assert.True(t, inj.ReleasePending())
	assert.False(t, inj.ReleasePending())
	assert.Empty(t, p.Held())
	assert.False(t, inj.Pending().Pending)

	posted := p.Posted()
	release := posted[len(posted)-1]
	assert.False(t, release.Down)
	assert.Equal(t, keymap.KeyA, release.Code)
	assert.Equal(t, []rune{'a'}, utf16.Decode(release.Text), "the release carries the character too")
}

func TestInjectReleasesStalePendingFirst(t *testing.T) {
	p, _, inj, _ := newInjector(t)
	p.FailPost(func(ev platform.KeyEvent) error {
		if !ev.Down {
			return errors.New("no")
		}
		return nil
	})
	require.Error(t, inj.Inject('a'))
	p.FailPost(nil)

	require.NoError(t, inj.Inject('b'))
	posted := p.Posted()
	require.Len(t, posted, 4)
	assert.Equal(t, keymap.KeyA, posted[1].Code)
	assert.False(t, posted[1].Down)
	assert.Equal(t, keymap.KeyB, posted[2].Code)
	assert.Empty(t, p.Held())
}

func TestInjectDownFailure(t *testing.T) {
	p, _, inj, _ := newInjector(t)
	p.FailPost(func(platform.KeyEvent) error { return errors.New("no") })
	err := inj.Inject('x')
	require.Error(t, err)
	assert.Contains(t, err.Error(), `inject 'x'`)
	assert.Empty(t, p.Held())
	assert.Equal(t, 1, inj.Drops())
	assert.False(t, inj.Pending().Pending, "nothing is held when the key-down was refused")

	p.FailPost(nil)
	assert.False(t, inj.ReleasePending())
	require.NoError(t, inj.Inject('y'))
	posted := p.Posted()
	require.Len(t, posted, 2, "no key-up for the refused key-down")
	assert.Equal(t, keymap.KeyY, posted[0].Code)
	assert.True(t, posted[0].Down)
}

func TestInjectAfterClose(t *testing.T) {
	_, src, inj, _ := newInjector(t)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.True(t, src.Closed())
	assert.ErrorIs(t, inj.Inject('a'), inject.ErrSourceClosed)
}

func TestDropDetectionRaisesDelay(t *testing.T) {
	_, _, inj, rec := newInjector(t)

	require.NoError(t, inj.Inject('a'))
	inj.ObserveEcho()
	require.NoError(t, inj.Inject('b'))
	// no echo for 'b'
	require.NoError(t, inj.Inject('c'))

	assert.Equal(t, []time.Duration{
		8 * time.Millisecond,
		8 * time.Millisecond,
		10 * time.Millisecond,
	}, rec.slept)
	assert.Equal(t, 1, inj.Drops())
	assert.Equal(t, 1, inj.Echoes())
}

func TestOpenSourceFailure(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	p.FailSource(errors.New("CGEventSourceCreate returned NULL"))

	_, err := inject.OpenSource(p, platform.SentinelTag)
	assert.ErrorIs(t, err, inject.ErrResourceCreation)
	assert.Contains(t, err.Error(), "CGEventSourceCreate")
}
