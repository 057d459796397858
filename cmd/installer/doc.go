// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// The faceforge installer provisions a machine to run faceforge in one
// guided pass.
//
// # What it does
//
// The installer probes the host (git, conda, CPU features, GPU), asks a few
// questions, then runs a fixed pipeline:
//
//  1. InstallPrerequisites - download and silently install git and/or
//     Miniconda, only when they are missing
//  2. CloneSource - fetch the faceforge source into the install directory
//  3. ProvisionEnvironment - create the pinned Python environment, replacing
//     any previous one with the same name
//  4. InstallArtifact - install the prebuilt dlib wheel matched to the
//     host's CPU features and the GPU choice
//  5. RunSetup - run faceforge's own setup inside the environment
//  6. CreateLauncher - write the activation script and desktop shortcut
//
// The pipeline is strictly sequential and aborts on the first failure.
// Completed steps are not rolled back; a failed run is fixed by re-running
// the installer, which recreates the environment from scratch.
//
// # Modes
//
// The default mode is a TUI wizard. --text runs a plain prompt-driven
// install for terminals where the TUI is unwanted, and --config points the
// installer at a TOML file for mirrored downloads or renamed artifacts.
//
// # Exit codes
//
// Zero means every step completed. Non-zero is the exit code propagated from
// whichever step failed, with the failing step named in the final output.
package main
