// Package catalog defines the built-in purchasing datasets and registers
// them with the core registry. Unlike init-time registration, datasets are
// wired explicitly so upload destinations can be injected at startup.
package catalog

import (
	"github.com/rowlift/rowlift/internal/target"
)

// Deps carries the upload destinations datasets bind to.
type Deps struct {
	// HTTP delivers rows to the purchasing backend's REST API.
	HTTP *target.HTTPTarget

	// Postgres, when non-nil, is preferred for datasets that map onto a
	// local table.
	Postgres *target.PostgresTarget
}

// Register wires every built-in dataset against the provided destinations.
// Call once at startup, after configuration is loaded.
func Register(deps Deps) {
	registerProducts(deps)
	registerSuppliers(deps)
	registerUsers(deps)
}
