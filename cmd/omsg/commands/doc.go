// Package commands defines the omsg CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Generate identity, prekeys and stealth keys
//   - fingerprint  Print the identity fingerprint
//   - register     Publish the key bundle to the shared registry
//   - send         Encrypt a message and broadcast it on the ledger
//   - recv         Scan the ledger and decrypt messages addressed to you
//   - rotate       Rotate the signed prekey and republish
//
// # Implementation
//
// The root command loads the TOML config, merges flag overrides and builds
// the dependency graph (keystore, registry, ledger, session store, services)
// before any subcommand runs, so handlers share one app context. The scan
// cursor persists under the home directory; recv resumes from it unless
// --from-start is given.
package commands
