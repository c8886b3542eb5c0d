/*
Copyright (C) 2026 Audio Solutions

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version exposes the build version.
package version

// Version is the current version of GradeFM.
// This is set at build time via ldflags:
//
//	-X github.com/audiosolutions/gradefm/internal/version.Version=X.Y.Z
var Version = "dev"
