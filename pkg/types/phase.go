package types

// PhaseType is one of the four market phases.
type PhaseType string

const (
	Closed         PhaseType = "closed"
	PreOpen        PhaseType = "pre_open"
	OpeningAuction PhaseType = "opening_auction"
	Continuous     PhaseType = "continuous"
)

// ExecutionStyle is the matching behavior a phase implies.
type ExecutionStyle string

const (
	ExecutionNone       ExecutionStyle = "none"
	ExecutionBatch      ExecutionStyle = "batch"
	ExecutionContinuous ExecutionStyle = "continuous"
)

// PhaseState is the declarative capability set for a point in time.
type PhaseState struct {
	PhaseType      PhaseType
	AllowSubmit    bool
	AllowCancel    bool
	AllowMatch     bool
	ExecutionStyle ExecutionStyle
}

// phaseDefaults maps each phase type to its capability set, mirroring
// original_source's PhaseStateConfig-per-PhaseType wiring.
var phaseDefaults = map[PhaseType]PhaseState{
	Closed: {
		PhaseType: Closed, AllowSubmit: false, AllowCancel: false,
		AllowMatch: false, ExecutionStyle: ExecutionNone,
	},
	PreOpen: {
		PhaseType: PreOpen, AllowSubmit: true, AllowCancel: true,
		AllowMatch: false, ExecutionStyle: ExecutionBatch,
	},
	OpeningAuction: {
		PhaseType: OpeningAuction, AllowSubmit: false, AllowCancel: false,
		AllowMatch: true, ExecutionStyle: ExecutionBatch,
	},
	Continuous: {
		PhaseType: Continuous, AllowSubmit: true, AllowCancel: true,
		AllowMatch: true, ExecutionStyle: ExecutionContinuous,
	},
}

// PhaseStateFor returns the declarative capability set for a phase type.
func PhaseStateFor(pt PhaseType) PhaseState {
	if s, ok := phaseDefaults[pt]; ok {
		return s
	}
	return phaseDefaults[Closed]
}
