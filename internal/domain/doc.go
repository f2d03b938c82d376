// Package domain defines the core data models and interfaces shared across
// the module. It contains plain types (key material, ratchet state, wire
// formats) and collaborator contracts (interfaces) only.
package domain
