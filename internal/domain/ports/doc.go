// Package ports defines the interfaces (ports) that external adapters must implement.
// Services depend on these rather than on the persistence package so that they
// can be unit tested with in-memory fakes.
package ports
