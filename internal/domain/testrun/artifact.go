package testrun

import "fmt"

// Tier is a stage boundary in the pipeline. Every artifact belongs to
// exactly one tier.
type Tier int

const (
	// TierSource is the frontend analysis output.
	TierSource Tier = iota
	// TierBackendInput is the converted form consumed by a backend.
	TierBackendInput
	// TierBinary is a final produced output.
	TierBinary
)

func (t Tier) String() string {
	switch t {
	case TierSource:
		return "source"
	case TierBackendInput:
		return "backend-input"
	case TierBinary:
		return "binary"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Artifact is an opaque payload tagged with the tier and concrete kind that
// produced it. The pipeline routes artifacts by these tags alone and never
// looks inside payloads; only the facade/handler pair registered for the
// same kind ever interprets one.
type Artifact interface {
	Tier() Tier
	Kind() string
}

// SourceArtifact is the output of frontend analysis for one module.
type SourceArtifact struct {
	Frontend FrontendKind
	Payload  any
}

func (a SourceArtifact) Tier() Tier   { return TierSource }
func (a SourceArtifact) Kind() string { return string(a.Frontend) }

// BackendInput is the converted form of a module, ready for a backend.
type BackendInput struct {
	Backend BackendKind
	Payload any
}

func (a BackendInput) Tier() Tier   { return TierBackendInput }
func (a BackendInput) Kind() string { return string(a.Backend) }

// BinaryArtifact is one produced output of a module.
type BinaryArtifact struct {
	Binary  BinaryKind
	Data    []byte
	Payload any
}

func (a BinaryArtifact) Tier() Tier   { return TierBinary }
func (a BinaryArtifact) Kind() string { return string(a.Binary) }
