package money

import (
	"sort"

	"github.com/google/uuid"

	pkgerrors "github.com/kasuwa-market/kasuwa-backend/pkg/errors"
)

// AllocationWeight is one participant in a proportional split, weighted by
// its share of the cart subtotal.
type AllocationWeight struct {
	Key    uuid.UUID
	Weight Cents
}

// AllocateProportionally splits total across the weighted participants so
// that each share is floor(total * weight / sumWeights) and the leftover
// cents land on the participant with the lexicographically lowest key. The
// returned shares always sum to total exactly.
func AllocateProportionally(total Cents, weights []AllocationWeight) (map[uuid.UUID]Cents, error) {
	if total < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total must not be negative")
	}
	if len(weights) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one allocation weight required")
	}

	var sum Cents
	for _, w := range weights {
		if w.Weight < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation weights must not be negative")
		}
		sum += w.Weight
	}
	if sum == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation weights sum to zero")
	}

	shares := make(map[uuid.UUID]Cents, len(weights))
	var allocated Cents
	for _, w := range weights {
		share := Cents(int64(total) * int64(w.Weight) / int64(sum))
		shares[w.Key] = share
		allocated += share
	}

	remainder := total - allocated
	if remainder < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCalculation, "proportional allocation over-assigned")
	}
	if remainder > 0 {
		shares[lowestKey(weights)] += remainder
	}
	return shares, nil
}

func lowestKey(weights []AllocationWeight) uuid.UUID {
	keys := make([]string, 0, len(weights))
	byString := make(map[string]uuid.UUID, len(weights))
	for _, w := range weights {
		s := w.Key.String()
		keys = append(keys, s)
		byString[s] = w.Key
	}
	sort.Strings(keys)
	return byString[keys[0]]
}
