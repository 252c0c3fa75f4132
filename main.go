// SPDX-License-Identifier: MPL-2.0

// mlforge composes layered container images for ML project workspaces and
// launches them through their registered entrypoints.
package main

import cmd "github.com/mlforge/mlforge/cmd/mlforge"

func main() {
	cmd.Execute()
}
