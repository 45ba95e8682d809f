package processor

import (
	"slices"
	"strings"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// Compare classifies differences between the reference dataset and the
// current master rows by natural key. The result is sorted by key.
func Compare(reference, current []domain.BankBranch) []domain.Change {
	ref := make(map[string]domain.BankBranch, len(reference))
	for _, b := range reference {
		ref[b.Key()] = b
	}
	cur := make(map[string]domain.BankBranch, len(current))
	for _, b := range current {
		cur[b.Key()] = b
	}

	changes := make([]domain.Change, 0)
	for key, next := range ref {
		prev, ok := cur[key]
		switch {
		case !ok:
			changes = append(changes, domain.Change{Kind: domain.ChangeAddition, Key: key, After: ptr(next)})
		case domain.Differs(prev, next):
			changes = append(changes, domain.Change{Kind: domain.ChangeUpdate, Key: key, Before: ptr(prev), After: ptr(next)})
		}
	}
	for key, prev := range cur {
		if _, ok := ref[key]; !ok {
			changes = append(changes, domain.Change{Kind: domain.ChangeDeletion, Key: key, Before: ptr(prev)})
		}
	}

	slices.SortFunc(changes, func(a, b domain.Change) int { return strings.Compare(a.Key, b.Key) })
	return changes
}

// impactKeys returns the keys of changes that touch existing rows.
func impactKeys(changes []domain.Change) []string {
	keys := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Kind != domain.ChangeAddition {
			keys = append(keys, c.Key)
		}
	}
	return keys
}

func ptr[T any](v T) *T { return &v }
