// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package artifact selects and stages the prebuilt binary wheel that matches
// the host's CPU capabilities and the user's GPU choice.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/faceforge-installer/internal/plan"
	"github.com/jeranaias/faceforge-installer/internal/probe"
)

// =============================================================================
// NAMING
// =============================================================================

// Naming is the capability-suffix table used to build artifact filenames.
// The zero value is not useful; start from DefaultNaming or config.
type Naming struct {
	// Base is the fixed artifact prefix (e.g. "dlib").
	Base string

	// GpuSuffix is appended when the plan selects the GPU artifact.
	GpuSuffix string

	// AVXSuffix, SSE4Suffix and NoneSuffix are the instruction-set suffixes.
	// Exactly one is appended, chosen by priority AVX > SSE4 > none.
	AVXSuffix  string
	SSE4Suffix string
	NoneSuffix string

	// Extension is the fixed file extension, including the dot.
	Extension string
}

// DefaultNaming returns the naming table for the dlib wheel shipped with the
// installer.
func DefaultNaming() Naming {
	return Naming{
		Base:       "dlib",
		GpuSuffix:  "_gpu",
		AVXSuffix:  "_avx",
		SSE4Suffix: "_sse4",
		NoneSuffix: "_none",
		Extension:  ".whl",
	}
}

// GenericName returns the name the artifact is shipped under before a
// capability-specific name is computed.
func (n Naming) GenericName() string {
	return n.Base + n.Extension
}

// Select computes the deterministic artifact filename for the given
// capability flags and plan. It is pure: identical inputs always yield the
// identical name.
func (n Naming) Select(flags probe.Flags, p *plan.Plan) string {
	var b strings.Builder
	b.WriteString(n.Base)

	if p.UseGpuArtifact() {
		b.WriteString(n.GpuSuffix)
	}

	// Instruction-set priority: AVX beats SSE4, SSE4 beats nothing.
	switch {
	case flags.HasAVX:
		b.WriteString(n.AVXSuffix)
	case flags.HasSSE4:
		b.WriteString(n.SSE4Suffix)
	default:
		b.WriteString(n.NoneSuffix)
	}

	b.WriteString(n.Extension)
	return b.String()
}

// =============================================================================
// STAGING
// =============================================================================

// Stage renames the pre-staged generically-named artifact in stagingDir to
// its final capability-specific name and returns the resulting path. If the
// file already carries the final name (e.g. a re-run), no rename is needed.
func Stage(stagingDir, genericName, finalName string) (string, error) {
	finalPath := filepath.Join(stagingDir, finalName)
	if genericName == finalName {
		return finalPath, nil
	}

	if _, err := os.Stat(finalPath); err == nil {
		return finalPath, nil
	}

	genericPath := filepath.Join(stagingDir, genericName)
	if err := os.Rename(genericPath, finalPath); err != nil {
		return "", fmt.Errorf("stage artifact %s: %w", finalName, err)
	}
	return finalPath, nil
}
