// Package aggregate holds the eleven aggregates' state machines: a
// static table of legal from-state -> to-state transitions per
// aggregate, generalized from the teacher's single flat
// Command{Op,Data} switch-dispatch (pkg/manager/fsm.go) into one small
// table per aggregate (spec §4.6).
package aggregate

import "fmt"

// InvalidTransitionError is returned when a requested transition is not
// present in an aggregate's table.
type InvalidTransitionError struct {
	Aggregate string
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("aggregate: %s: illegal transition %s -> %s", e.Aggregate, e.From, e.To)
}

// table is a from-state -> allowed-to-states adjacency set.
type table map[string]map[string]bool

func newTable(edges map[string][]string) table {
	t := make(table, len(edges))
	for from, tos := range edges {
		set := make(map[string]bool, len(tos))
		for _, to := range tos {
			set[to] = true
		}
		t[from] = set
	}
	return t
}

func (t table) validate(aggregate, from, to string) error {
	if tos, ok := t[from]; ok && tos[to] {
		return nil
	}
	return &InvalidTransitionError{Aggregate: aggregate, From: from, To: to}
}
