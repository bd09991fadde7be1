package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/Alia5/ghostkey/engine"
	"github.com/Alia5/ghostkey/internal/configpaths"
	"github.com/Alia5/ghostkey/internal/log"
	"github.com/Alia5/ghostkey/internal/server/api"
	"github.com/Alia5/ghostkey/internal/server/api/auth"
	"github.com/Alia5/ghostkey/internal/server/api/handler"
	"github.com/Alia5/ghostkey/internal/watcher"
	"github.com/Alia5/ghostkey/platform"
)

const keyFileName = "ghostkey.key.txt"

type Serve struct {
	Platform        string           `help:"Input platform backend (defaults to the native one)" env:"GHOSTKEY_PLATFORM"`
	Engine          engine.Config    `embed:"" prefix:"engine."`
	ApiServerConfig api.ServerConfig `embed:"" prefix:"api."`
	Watch           watcher.Config   `embed:"" prefix:"watch."`
}

// Run is called by Kong when the serve command is executed.
func (s *Serve) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartServer(ctx, logger, rawLogger)
}

// StartServer runs the engine, the control API and the optional drop
// directory watcher until ctx is done. A live session is cancelled on the way
// out so no key stays down.
func (s *Serve) StartServer(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	if s.ApiServerConfig.Addr == "" {
		return fmt.Errorf("API server address must be set (default 127.0.0.1:3243)")
	}
	if s.ApiServerConfig.Password == "" {
		pwd, err := loadOrCreateKey(logger)
		if err != nil {
			return err
		}
		s.ApiServerConfig.Password = pwd
	}

	p, err := platform.Open(s.Platform, logger)
	if err != nil {
		return err
	}
	defer p.Close()
	logger.Info("Starting ghostkey", "platform", p.Name())
	if ok, hint := p.Trusted(); !ok {
		logger.Warn("input monitoring permission missing, sessions will fail to arm", "hint", hint)
	}

	hub := engine.NewHub()
	defer hub.Close()
	eng, err := engine.New(p, s.Engine, logger, engine.WithDelegate(hub), engine.WithRawLogger(rawLogger))
	if err != nil {
		return err
	}
	defer func() {
		if eng.Active() {
			logger.Info("cancelling live session before exit")
		}
		_ = eng.Close()
	}()

	apiSrv := api.New(s.ApiServerConfig.Addr, s.ApiServerConfig, logger)
	r := apiSrv.Router()
	r.Register("ping", handler.Ping(p.Name()))
	r.Register("inject/start", handler.InjectStart(eng))
	r.Register("inject/cancel", handler.InjectCancel(eng))
	r.Register("inject/status", handler.InjectStatus(eng))
	r.RegisterStream("inject/events", handler.InjectEvents(hub))

	if err := apiSrv.Start(); err != nil {
		logger.Error("failed to start API server", "error", err)
		return err
	}
	defer apiSrv.Close()

	if s.Watch.Dir != "" {
		w, err := watcher.New(s.Watch, eng, logger)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			_ = w.Close()
			return fmt.Errorf("watch %s: %w", s.Watch.Dir, err)
		}
		defer w.Close()
	}

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

func loadOrCreateKey(logger *slog.Logger) (string, error) {
	keyFileDir, err := configpaths.DefaultConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve key file path: %w", err)
	}
	keyFilePath := filepath.Join(keyFileDir, keyFileName)
	if pwd, err := os.ReadFile(keyFilePath); err == nil {
		return strings.TrimSpace(string(pwd)), nil
	}
	newPwd, err := auth.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate new API password: %w", err)
	}
	if err := os.MkdirAll(keyFileDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config dir for key file: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newPwd), 0o600); err != nil {
		return "", fmt.Errorf("failed to write new API password to file: %w", err)
	}
	logger.Info("Generated API server password", "path", keyFilePath)
	logger.Info("-------------------------------------")
	logger.Info("Your ghostkey API server password is:")
	logger.Info("-------------------------------------")
	logger.Info(newPwd)
	logger.Info("-------------------------------------")
	logger.Info("Local clients do not need it unless --api.require-local-host-auth is set")
	return newPwd, nil
}

// readKeyFile returns the stored API password, or "" when there is none.
func readKeyFile() string {
	dir, err := configpaths.DefaultConfigDir()
	if err != nil {
		return ""
	}
	pwd, err := os.ReadFile(filepath.Join(dir, keyFileName))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(pwd))
}
