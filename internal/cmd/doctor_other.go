//go:build !linux && !darwin

package cmd

func osRelease() string { return "" }
