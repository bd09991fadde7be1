package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/ghostkey/apitypes"
	"github.com/Alia5/ghostkey/engine"
	"github.com/Alia5/ghostkey/internal/log"
	"github.com/Alia5/ghostkey/internal/server/api"
	"github.com/Alia5/ghostkey/internal/server/api/handler"
	htesting "github.com/Alia5/ghostkey/internal/testing"
	"github.com/Alia5/ghostkey/keymap"
	"github.com/Alia5/ghostkey/platform/sim"
)

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		command string
		format  string
		check   func(t *testing.T, data []byte)
	}{
		{"serve", "json", func(t *testing.T, data []byte) {
			var m map[string]any
			require.NoError(t, json.Unmarshal(data, &m))
			apiCfg := m["api"].(map[string]any)
			assert.Equal(t, "127.0.0.1:3243", apiCfg["addr"])
			eng := m["engine"].(map[string]any)
			assert.Equal(t, "escape", eng["cancelKey"])
			assert.Equal(t, "8ms", eng["pacing"].(map[string]any)["initial"])
			assert.Equal(t, "500ms", m["watch"].(map[string]any)["debounce"])
		}},
		{"type", "yaml", func(t *testing.T, data []byte) {
			var m map[string]any
			require.NoError(t, yaml.Unmarshal(data, &m))
			assert.NotContains(t, m, "text", "positional args are not config")
			assert.Contains(t, m, "engine")
		}},
		{"client", "toml", func(t *testing.T, data []byte) {
			tree, err := toml.LoadBytes(data)
			require.NoError(t, err)
			assert.Equal(t, "127.0.0.1:3243", tree.Get("addr"))
			assert.Equal(t, "5s", tree.Get("timeout"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.command+"."+tt.format, func(t *testing.T) {
			dest := filepath.Join(dir, tt.command+"."+tt.format)
			c := &ConfigInit{Command: tt.command, Format: tt.format, Output: dest}
			require.NoError(t, c.Run())
			data, err := os.ReadFile(dest)
			require.NoError(t, err)
			tt.check(t, data)

			assert.Error(t, c.Run(), "existing file needs --force")
			c.Force = true
			assert.NoError(t, c.Run())
		})
	}
}

func TestReadText(t *testing.T) {
	file := filepath.Join(t.TempDir(), "in.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file\n"), 0o600))

	got, err := (&Type{Text: "arg"}).readText(strings.NewReader("stdin"), false)
	require.NoError(t, err)
	assert.Equal(t, "arg", got)

	got, err = (&Type{File: file}).readText(strings.NewReader("stdin"), false)
	require.NoError(t, err)
	assert.Equal(t, "from file\n", got)

	got, err = (&Type{}).readText(strings.NewReader("piped\n"), false)
	require.NoError(t, err)
	assert.Equal(t, "piped", got)

	_, err = (&Type{}).readText(strings.NewReader(""), true)
	assert.ErrorContains(t, err, "no text given")
}

func pressWhenArmed(t *testing.T, p *sim.Platform, codes ...keymap.KeyCode) {
	if !assert.Eventually(t, func() bool { return p.Taps() == 1 }, 2*time.Second, time.Millisecond) {
		return
	}
	for _, c := range codes {
		p.Press(c)
	}
}

func TestTypeText(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	go pressWhenArmed(t, p, keymap.KeyA, keymap.KeyA, keymap.KeyA)

	var out bytes.Buffer
	stats, err := typeText(context.Background(), p, engine.DefaultConfig(), "ok!", slog.Default(), log.NewRaw(nil), &out)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Successes)
	assert.Equal(t, "ok!", p.Typed())
	assert.Eventually(t, func() bool { return strings.Contains(out.String(), "done: 3 characters") }, time.Second, time.Millisecond)
}

func TestTypeTextCancelledByContext(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		pressWhenArmed(t, p, keymap.KeyA)
		cancel()
	}()

	stats, err := typeText(ctx, p, engine.DefaultConfig(), "abc", slog.Default(), log.NewRaw(nil), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, "a", p.Typed())
	assert.Equal(t, 0, p.Taps())
	assert.Empty(t, p.Held())
}

func TestTypeTextRejectsEmpty(t *testing.T) {
	p := sim.New(slog.Default())
	defer p.Close()
	_, err := typeText(context.Background(), p, engine.DefaultConfig(), "", slog.Default(), log.NewRaw(nil), &bytes.Buffer{})
	assert.ErrorIs(t, err, engine.ErrNoSolutionText)
}

func TestClientCommands(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")

	hub := engine.NewHub()
	t.Cleanup(hub.Close)
	p, e := htesting.NewSimEngine(t, engine.DefaultConfig(), engine.WithDelegate(hub))
	addr, done := htesting.StartAPIServer(t, api.ServerConfig{RequestTimeout: time.Second}, func(r *api.Router, _ *api.Server) {
		r.Register("ping", handler.Ping(p.Name()))
		r.Register("inject/start", handler.InjectStart(e))
		r.Register("inject/cancel", handler.InjectCancel(e))
		r.Register("inject/status", handler.InjectStatus(e))
		r.RegisterStream("inject/events", handler.InjectEvents(hub))
	})
	t.Cleanup(done)

	var out bytes.Buffer
	flags := ClientFlags{Addr: addr, Timeout: 2 * time.Second, out: &out}

	require.NoError(t, (&ClientPing{ClientFlags: flags}).Run())
	assert.Contains(t, out.String(), `"server": "ghostkey"`)

	out.Reset()
	require.NoError(t, (&ClientStart{ClientFlags: flags, Text: "hey"}).Run())
	var started apitypes.InjectStartResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &started))
	assert.Equal(t, 3, started.Total)

	assert.Error(t, (&ClientStart{ClientFlags: flags, Text: "again"}).Run(), "second session is rejected")

	out.Reset()
	require.NoError(t, (&ClientStatus{ClientFlags: flags}).Run())
	var status apitypes.InjectStatusResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, "active", status.State)

	out.Reset()
	require.NoError(t, (&ClientCancel{ClientFlags: flags}).Run())
	assert.Contains(t, out.String(), `"cancelled": true`)
	assert.Eventually(t, func() bool { return !e.Active() }, time.Second, time.Millisecond)

	assert.ErrorContains(t, (&ClientStart{ClientFlags: flags}).Run(), "no text given")
}

func TestClientEventsOnce(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")

	hub := engine.NewHub()
	t.Cleanup(hub.Close)
	p, e := htesting.NewSimEngine(t, engine.DefaultConfig(), engine.WithDelegate(hub))
	addr, done := htesting.StartAPIServer(t, api.ServerConfig{RequestTimeout: time.Second}, func(r *api.Router, _ *api.Server) {
		r.RegisterStream("inject/events", handler.InjectEvents(hub))
	})
	t.Cleanup(done)

	var out bytes.Buffer
	cmd := &ClientEvents{ClientFlags: ClientFlags{Addr: addr, Timeout: 2 * time.Second, out: &out}, Once: true}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.follow(ctx) }()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, time.Millisecond)
	require.NoError(t, e.Start("x"))
	p.Press(keymap.KeyA)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("events command did not stop after the session ended")
	}
	assert.Contains(t, out.String(), `"type": "start"`)
	assert.Contains(t, out.String(), `"type": "complete"`)
}

func TestDoctorSim(t *testing.T) {
	var out bytes.Buffer
	d := &Doctor{Platform: sim.Name, out: &out}
	require.NoError(t, d.Run(slog.Default()))
	assert.Contains(t, out.String(), "platform:       sim")
	assert.Contains(t, out.String(), "input access:   granted")
	assert.Contains(t, out.String(), "secure input:   inactive")
}

func TestDoctorUnknownPlatform(t *testing.T) {
	var out bytes.Buffer
	d := &Doctor{Platform: "nope", out: &out}
	assert.Error(t, d.Run(slog.Default()))
	assert.Contains(t, out.String(), "unavailable")
}

func TestKeymapTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&Keymap{out: &out}).Run())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, len(keymap.Chars())+4, len(lines))
	assert.Regexp(t, `'A'\s+A\s+0x00\s+true`, out.String())
	assert.Regexp(t, `' '\s+Space\s+0x31\s+false`, out.String())
}

func TestServeStartsAndStops(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	t.Setenv("AppData", filepath.Join(home, "cfg"))

	s := &Serve{
		Platform:        sim.Name,
		Engine:          engine.DefaultConfig(),
		ApiServerConfig: api.ServerConfig{Addr: "127.0.0.1:0", RequestTimeout: time.Second},
	}
	s.Watch.Dir = filepath.Join(home, "drop")

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.StartServer(ctx, slog.Default(), log.NewRaw(nil)))

	assert.NotEmpty(t, s.ApiServerConfig.Password, "key file password loaded")
	assert.NotEmpty(t, readKeyFile())
	assert.DirExists(t, s.Watch.Dir)
}
