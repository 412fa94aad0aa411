// Package switchboard provides the public API for embedding the switchboard
// in a larger program. This is the stable surface for external consumers.
package switchboard

import (
	"github.com/jmswain/switchboard/internal/runtime"
)

// Switchboard ties together the account pool, the provider bridge, the usage
// ledger, and the HTTP front door. See internal/runtime.Switchboard for full
// documentation.
type Switchboard = runtime.Switchboard

// Option is a functional option for configuring a Switchboard.
type Option = runtime.Option

// New creates a new Switchboard with the given options.
// Example:
//
//	sb, err := switchboard.New(
//	    switchboard.WithConfigFile("config.yaml"),
//	)
var New = runtime.New

var (
	// Config sources
	WithConfigFile = runtime.WithConfigFile
	WithConfig     = runtime.WithConfig

	// Dependency overrides
	WithLogger   = runtime.WithLogger
	WithAccounts = runtime.WithAccounts
	WithProvider = runtime.WithProvider
	WithRecorder = runtime.WithRecorder
)
