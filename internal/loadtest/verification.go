package loadtest

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// verifyResults checks the seeded invariants against what the run observed
// and what the service reports.
func verifyResults(ctx context.Context, config *Config, topo *Topology, assignedByOperator map[int64]int, svcStats *serviceStats, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if stats.ContactsSubmitted == 0 {
		return fmt.Errorf("no submissions to verify")
	}

	// Capacity invariant: no operator may hold more active contacts than
	// its seeded capacity. Nothing was closed during the run, so the
	// observed assignment tally is the operator's active load.
	if err := verifyCapacityInvariant(topo, assignedByOperator); err != nil {
		return fmt.Errorf("capacity invariant violated: %w", err)
	}
	log.Println("✅ Capacity invariant verified")

	// Inactive operators must never appear in the assignment tally.
	if err := verifyInactiveOperators(topo, assignedByOperator); err != nil {
		return fmt.Errorf("inactive operator received assignments: %w", err)
	}
	log.Println("✅ Inactive operator exclusion verified")

	// Service totals must be consistent with themselves and cover at
	// least what this run produced. The store may carry contacts from
	// earlier runs, so an exact match is not required.
	if err := verifyServiceTotals(svcStats, stats); err != nil {
		log.Printf("⚠️  Service totals warning: %v", err)
	} else {
		log.Println("✅ Service totals verified")
	}

	displayOperatorDistribution(topo, assignedByOperator, config.Verbose)

	log.Println("✅ Result verification completed")
	return nil
}

// verifyCapacityInvariant checks each operator's tally against its capacity.
func verifyCapacityInvariant(topo *Topology, assignedByOperator map[int64]int) error {
	for operatorID, count := range assignedByOperator {
		capacity, ok := topo.CapacityByOperator[operatorID]
		if !ok {
			return fmt.Errorf("assignment to unknown operator %d", operatorID)
		}
		if count > capacity {
			return fmt.Errorf("operator %d holds %d active contacts with capacity %d",
				operatorID, count, capacity)
		}
	}
	return nil
}

// verifyInactiveOperators checks that deactivated operators got nothing.
func verifyInactiveOperators(topo *Topology, assignedByOperator map[int64]int) error {
	for operatorID, count := range assignedByOperator {
		if count > 0 && !topo.ActiveByOperator[operatorID] {
			return fmt.Errorf("operator %d is inactive but holds %d contacts", operatorID, count)
		}
	}
	return nil
}

// verifyServiceTotals sanity-checks the /stats payload.
func verifyServiceTotals(svcStats *serviceStats, stats *Stats) error {
	if svcStats.TotalContacts != svcStats.Assigned+svcStats.Unassigned {
		return fmt.Errorf("total contacts (%d) does not equal assigned (%d) + unassigned (%d)",
			svcStats.TotalContacts, svcStats.Assigned, svcStats.Unassigned)
	}

	produced := stats.ContactsAssigned + stats.ContactsUnassigned
	if svcStats.TotalContacts < produced {
		return fmt.Errorf("service reports %d contacts but this run produced %d",
			svcStats.TotalContacts, produced)
	}

	return nil
}

// displayOperatorDistribution shows how assignments spread across operators.
func displayOperatorDistribution(topo *Topology, assignedByOperator map[int64]int, verbose bool) {
	type operatorLoad struct {
		id       int64
		count    int
		capacity int
	}

	loads := make([]operatorLoad, 0, len(assignedByOperator))
	for id, count := range assignedByOperator {
		loads = append(loads, operatorLoad{id: id, count: count, capacity: topo.CapacityByOperator[id]})
	}
	sort.Slice(loads, func(i, j int) bool {
		return loads[i].count > loads[j].count
	})

	topN := 10
	if len(loads) < topN {
		topN = len(loads)
	}

	log.Printf("🏆 Top %d operators by assignments:", topN)
	for i := 0; i < topN; i++ {
		entry := loads[i]
		log.Printf("   %d. operator %d - %d/%d active contacts", i+1, entry.id, entry.count, entry.capacity)
	}

	if verbose {
		saturated := 0
		for _, entry := range loads {
			if entry.count == entry.capacity {
				saturated++
			}
		}

		log.Printf(`📊 Distribution statistics:
   Operators with assignments: %d
   Saturated operators: %d
`, len(loads), saturated)
	}
}
