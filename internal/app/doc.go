// Package app wires application dependencies for the CLI.
//
// It loads the TOML config, builds the concrete stores, collaborators and
// high-level services, and exposes them via the Wire struct for commands
// to use.
package app
