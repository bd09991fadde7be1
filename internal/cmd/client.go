package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/ghostkey/apiclient"
)

// Client groups the commands that talk to a running serve instance.
type Client struct {
	Ping   ClientPing   `cmd:"" help:"Check that the server is reachable"`
	Start  ClientStart  `cmd:"" help:"Arm a session on the server"`
	Cancel ClientCancel `cmd:"" help:"Cancel the live session"`
	Status ClientStatus `cmd:"" help:"Show engine state and counters"`
	Events ClientEvents `cmd:"" help:"Follow session events until interrupted"`
}

// ClientFlags are shared by every client subcommand.
type ClientFlags struct {
	Addr     string        `help:"Address of the ghostkey API server" default:"127.0.0.1:3243" env:"GHOSTKEY_CLIENT_ADDR"`
	Password string        `help:"API password (defaults to the local key file)" env:"GHOSTKEY_CLIENT_PASSWORD"`
	Timeout  time.Duration `help:"Request timeout" default:"5s" env:"GHOSTKEY_CLIENT_TIMEOUT"`

	out io.Writer
}

func (f *ClientFlags) client() *apiclient.Client {
	pwd := f.Password
	if pwd == "" {
		pwd = readKeyFile()
	}
	cfg := &apiclient.Config{
		DialTimeout:  f.Timeout,
		ReadTimeout:  f.Timeout,
		WriteTimeout: f.Timeout,
		Password:     pwd,
	}
	return apiclient.NewWithConfig(f.Addr, cfg)
}

func (f *ClientFlags) print(v any) error {
	w := f.out
	if w == nil {
		w = os.Stdout
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

type ClientPing struct {
	ClientFlags `embed:""`
}

func (c *ClientPing) Run() error {
	resp, err := c.client().Ping()
	if err != nil {
		return err
	}
	return c.print(resp)
}

type ClientStart struct {
	ClientFlags `embed:""`
	Text        string `arg:"" optional:"" help:"Text to type (read from --file when omitted)"`
	File        string `short:"f" help:"Read the text from a file" type:"path"`
}

func (c *ClientStart) Run() error {
	text := c.Text
	if text == "" && c.File != "" {
		b, err := os.ReadFile(c.File)
		if err != nil {
			return err
		}
		text = string(b)
	}
	if text == "" {
		return errors.New("no text given: pass TEXT or --file")
	}
	resp, err := c.client().InjectStart(text)
	if err != nil {
		return err
	}
	return c.print(resp)
}

type ClientCancel struct {
	ClientFlags `embed:""`
}

func (c *ClientCancel) Run() error {
	resp, err := c.client().InjectCancel()
	if err != nil {
		return err
	}
	return c.print(resp)
}

type ClientStatus struct {
	ClientFlags `embed:""`
}

func (c *ClientStatus) Run() error {
	resp, err := c.client().InjectStatus()
	if err != nil {
		return err
	}
	return c.print(resp)
}

type ClientEvents struct {
	ClientFlags `embed:""`
	Once        bool `help:"Exit after the first session ends"`
}

func (c *ClientEvents) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.follow(ctx)
}

func (c *ClientEvents) follow(ctx context.Context) error {
	stream, err := c.client().Events(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	for {
		ev, err := stream.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := c.print(ev); err != nil {
			return err
		}
		if c.Once && (ev.Type == "complete" || ev.Type == "cancel" || ev.Type == "fail") {
			return nil
		}
	}
}
