package integration

// Stage is a step in the ordered integration sequence.
type Stage string

const (
	StageArrival           Stage = "arrival"
	StageInitialSettlement Stage = "initial_settlement"
	StageAdaptation        Stage = "adaptation"
	StageIntegration       Stage = "integration"
	StageFullIntegration   Stage = "full_integration"
)

// Stages lists every stage in progression order.
var Stages = []Stage{
	StageArrival, StageInitialSettlement, StageAdaptation, StageIntegration, StageFullIntegration,
}

// Rank returns the stage's position in Stages, or -1 if unknown.
func (s Stage) Rank() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Stage thresholds on the headline average.
const (
	FullIntegrationThreshold = 80.0
	IntegrationThreshold     = 60.0
	AdaptationThreshold      = 40.0
	// SettlementMonths must be exceeded to leave arrival on time alone.
	SettlementMonths = 6
)

// StageFor maps a headline average and months in destination to a stage.
func StageFor(avg float64, months int) Stage {
	switch {
	case avg >= FullIntegrationThreshold:
		return StageFullIntegration
	case avg >= IntegrationThreshold:
		return StageIntegration
	case avg >= AdaptationThreshold:
		return StageAdaptation
	case months > SettlementMonths:
		return StageInitialSettlement
	default:
		return StageArrival
	}
}

// Later returns whichever of a and b comes further along the sequence.
func Later(a, b Stage) Stage {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}
