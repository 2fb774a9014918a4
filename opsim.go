// Package opsim is a lightweight meta-package that re-exports the
// types most callers need. Import the submodules directly for
// anything beyond the basics:
//   - github.com/opsimlab/opsim/core - simulation engine and HTTP service
//   - github.com/opsimlab/opsim/telemetry - OpenTelemetry export
//   - github.com/opsimlab/opsim/loadgen - synthetic traffic
package opsim

import (
	"github.com/opsimlab/opsim/core"
)

// Re-export the core simulation types.
type (
	// Operation types
	Kind             = core.Kind
	Outcome          = core.Outcome
	OperationRequest = core.OperationRequest
	OperationResult  = core.OperationResult
	ChildEvent       = core.ChildEvent
	Record           = core.Record

	// Behavior policy types
	Policy      = core.Policy
	PolicyTable = core.PolicyTable

	// Engine and service types
	Simulator = core.Simulator
	Service   = core.Service

	// Configuration types
	Config          = core.Config
	Option          = core.Option
	HTTPConfig      = core.HTTPConfig
	CORSConfig      = core.CORSConfig
	TelemetryConfig = core.TelemetryConfig
	LoadGenConfig   = core.LoadGenConfig
	LoggingConfig   = core.LoggingConfig
	PolicyOverride  = core.PolicyOverride

	// Interfaces
	Logger = core.Logger
	Sink   = core.Sink
)

// Re-export the operation kinds and outcomes.
const (
	KindService     = core.KindService
	KindDistributed = core.KindDistributed
	KindTopology    = core.KindTopology
	KindEvent       = core.KindEvent
	KindSLOSuccess  = core.KindSLOSuccess
	KindSLOFail     = core.KindSLOFail
	KindSLOLatency  = core.KindSLOLatency
	KindTradeBuy    = core.KindTradeBuy
	KindTradeSell   = core.KindTradeSell
	KindLoad        = core.KindLoad

	OutcomeSuccess = core.OutcomeSuccess
	OutcomeFailure = core.OutcomeFailure
)

// Re-export the primary constructors and helpers.
var (
	NewConfig    = core.NewConfig
	NewSimulator = core.NewSimulator
	NewService   = core.NewService
	ParseKind    = core.ParseKind
	Kinds        = core.Kinds
)

// Re-export the sentinel errors.
var (
	ErrUnsupportedKind      = core.ErrUnsupportedKind
	ErrInvalidParameter     = core.ErrInvalidParameter
	ErrInvalidPolicy        = core.ErrInvalidPolicy
	ErrInvalidConfiguration = core.ErrInvalidConfiguration
)
