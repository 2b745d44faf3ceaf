package loadtest

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/dispatch/pkg/logger"
)

// Constants for random number generation.
const (
	operatorProfileDivisor = 6
	weightDivisor          = 10
	duplicateDivisor       = 10
)

// Constants for operator capacity ranges.
const (
	smallCapacityMin  = 1
	smallCapacityMax  = 3
	mediumCapacityMin = 5
	mediumCapacityMax = 15
	largeCapacityMin  = 50
	largeCapacityMax  = 200
)

// Constants for operator profile cases.
const (
	caseSmallOperator    = 0
	caseMediumOperator   = 1
	caseLargeOperator    = 2
	caseInactiveOperator = 3
	caseBusyOperator     = 4
	caseIdleOperator     = 5
)

// randomInt returns a random int in [min, max] using crypto/rand.
func randomInt(minVal, maxVal int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(maxVal-minVal+1)))
	return minVal + int(n.Int64())
}

// generateTopology creates the operator, source and edge specifications
// for the run. Every source is attached to every operator; weights and
// capacities are varied so that the run exercises skew, exhaustion and
// the zero-eligibility path.
func generateTopology(ctx context.Context, config *Config) *Topology {
	logger.Get().Info(ctx, "generating topology",
		logger.Int("operators", config.NumOperators),
		logger.Int("sources", config.NumSources))

	topo := &Topology{
		Operators:          make([]OperatorSpec, config.NumOperators),
		CapacityByOperator: make(map[int64]int),
		ActiveByOperator:   make(map[int64]bool),
	}

	for i := 0; i < config.NumOperators; i++ {
		topo.Operators[i] = generateOperator(i)
	}

	// Attach every operator to every source with a varied weight. A zero
	// weight keeps the edge out of the draw entirely.
	for s := 0; s < config.NumSources; s++ {
		for o := 0; o < config.NumOperators; o++ {
			weight, _ := rand.Int(rand.Reader, big.NewInt(weightDivisor))
			topo.Edges = append(topo.Edges, EdgeSpec{
				SourceIndex:   s,
				OperatorIndex: o,
				Weight:        int(weight.Int64()),
			})
		}
	}

	return topo
}

// generateOperator creates a single operator spec with a varied profile.
func generateOperator(index int) OperatorSpec {
	name := "operator_" + strconv.Itoa(index)

	profile, _ := rand.Int(rand.Reader, big.NewInt(operatorProfileDivisor))
	switch profile.Int64() {
	case caseSmallOperator:
		// Tight capacity, fills up fast
		return OperatorSpec{Name: name, Active: true, MaxActiveLeads: randomInt(smallCapacityMin, smallCapacityMax)}
	case caseMediumOperator:
		return OperatorSpec{Name: name, Active: true, MaxActiveLeads: randomInt(mediumCapacityMin, mediumCapacityMax)}
	case caseLargeOperator:
		// Rarely exhausted, absorbs the overflow
		return OperatorSpec{Name: name, Active: true, MaxActiveLeads: randomInt(largeCapacityMin, largeCapacityMax)}
	case caseInactiveOperator:
		// Must never receive an assignment
		return OperatorSpec{Name: name, Active: false, MaxActiveLeads: randomInt(mediumCapacityMin, mediumCapacityMax)}
	case caseBusyOperator:
		// Capacity of one, exercises the conflict retry path
		return OperatorSpec{Name: name, Active: true, MaxActiveLeads: 1}
	case caseIdleOperator:
		return OperatorSpec{Name: name, Active: true, MaxActiveLeads: randomInt(largeCapacityMin, largeCapacityMax)}
	default:
		return OperatorSpec{Name: name, Active: true, MaxActiveLeads: randomInt(mediumCapacityMin, mediumCapacityMax)}
	}
}

// generateSubmissions creates the contact submissions. Roughly one in ten
// reuses the previous external lead id so the run exercises idempotent
// lead resolution.
func generateSubmissions(ctx context.Context, config *Config, topo *Topology, stats *Stats) []Submission {
	logger.Get().Info(ctx, "generating submissions", logger.Int("numContacts", config.NumContacts))

	submissions := make([]Submission, config.NumContacts)
	lastExternalID := ""

	for i := 0; i < config.NumContacts; i++ {
		externalID := uuid.New().String()
		if lastExternalID != "" {
			dup, _ := rand.Int(rand.Reader, big.NewInt(duplicateDivisor))
			if dup.Int64() == 0 {
				externalID = lastExternalID
			}
		}
		lastExternalID = externalID

		sourceIdx, _ := rand.Int(rand.Reader, big.NewInt(int64(len(topo.SourceIDs))))
		submissions[i] = Submission{
			LeadExternalID: externalID,
			SourceID:       topo.SourceIDs[sourceIdx.Int64()],
		}
	}

	stats.ContactsGenerated = len(submissions)
	logger.Get().Info(ctx, "generated submissions successfully", logger.Int("count", len(submissions)))

	return submissions
}
