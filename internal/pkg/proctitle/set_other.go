//go:build !linux

package proctitle

func setName(string) error { return nil }
