// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for mlforge.
//
// This package implements the Cobra command hierarchy for the mlforge CLI:
// the root command, image composition (build, plan, pin), container dispatch
// (run), project scaffolding and checks (init, validate), and configuration
// management. Command handlers delegate business logic through the App
// composition root so tests can substitute service implementations.
package cmd
