// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package main

import (
	"syscall"
)

// freeDiskSpace returns the free disk space in bytes for the given path on
// Unix systems.
func freeDiskSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t

	err := syscall.Statfs(path, &stat)
	if err != nil {
		return 0, err
	}

	// Use Bavail (available to non-root users) rather than Bfree: the
	// environment is created as a regular user.
	return stat.Bavail * uint64(stat.Bsize), nil
}
