// Package registry publishes and resolves key bundles.
//
// A bundle is accepted only if every key decodes to a curve point, the peer
// id matches the identity key, and the signed prekey signature verifies.
// The registry enforces on publish what initiators verify again on use.
// Memory serves tests and single-process setups; File shares one JSON file
// between processes, standing in for a directory service.
package registry
