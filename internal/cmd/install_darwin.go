//go:build darwin

package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const agentLabel = "io.github.alia5.ghostkey"

func agentPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", agentLabel+".plist"), nil
}

func guiDomain() string { return fmt.Sprintf("gui/%d", os.Getuid()) }

func install(logger *slog.Logger) error {
	exePath, err := currentExecutable()
	if err != nil {
		return err
	}
	plistPath, err := agentPath()
	if err != nil {
		return err
	}
	logDir := filepath.Join(filepath.Dir(filepath.Dir(plistPath)), "Logs")

	if err := os.MkdirAll(filepath.Dir(plistPath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(plistPath, []byte(launchAgentContent(exePath, logDir)), 0o644); err != nil {
		return err
	}

	// A previous version may still be loaded.
	_ = runLaunchctl("bootout", guiDomain()+"/"+agentLabel)
	if err := runLaunchctl("bootstrap", guiDomain(), plistPath); err != nil {
		return err
	}

	logger.Info("ghostkey LaunchAgent installed", "path", plistPath, "exe", exePath)
	logger.Info("grant Input Monitoring and Accessibility to the binary in System Settings, it is never granted automatically")
	return nil
}

func uninstall(logger *slog.Logger) error {
	plistPath, err := agentPath()
	if err != nil {
		return err
	}
	var errs []error
	if err := runLaunchctl("bootout", guiDomain()+"/"+agentLabel); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Info("ghostkey LaunchAgent removed", "path", plistPath)
	return nil
}

func launchAgentContent(exePath, logDir string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
		<string>%s</string>
		<string>serve</string>
	</array>
	<key>WorkingDirectory</key>
	<string>%s</string>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
</dict>
</plist>
`, agentLabel, exePath, filepath.Dir(exePath),
		filepath.Join(logDir, "ghostkey.log"), filepath.Join(logDir, "ghostkey.err.log"))
}

func runLaunchctl(args ...string) error {
	cmd := exec.Command("launchctl", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}
