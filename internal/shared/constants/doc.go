// Package constants centralizes tunables shared across checkers, the
// aggregator and the API layer.
package constants
