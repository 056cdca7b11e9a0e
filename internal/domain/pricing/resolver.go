package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Resolution strategy
// ---------------------------------------------------------------------------

// ResolutionStrategy is a tenant's configured default for handling conflicts
type ResolutionStrategy string

const (
	// StrategyBlingWins resolves synchronously in favor of the remote price
	StrategyBlingWins ResolutionStrategy = "BLING_WINS"
	// StrategyLocalWins resolves synchronously in favor of the local price
	StrategyLocalWins ResolutionStrategy = "LOCAL_WINS"
	// StrategyCustom leaves conflicts unresolved for manual action
	StrategyCustom ResolutionStrategy = "CUSTOM"
)

// IsValid returns true if the strategy is valid
func (s ResolutionStrategy) IsValid() bool {
	switch s {
	case StrategyBlingWins, StrategyLocalWins, StrategyCustom:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Evaluation input / output
// ---------------------------------------------------------------------------

// Baseline carries the historical context the resolver needs to classify a
// conflict. Known is false when no reconciliation baseline exists for the
// entity (first sync, purged history).
type Baseline struct {
	// Known is false when there is no historical baseline to compare against
	Known bool
	// LocalChanged is true if the local price changed since the last reconciliation
	LocalChanged bool
	// RemoteChanged is true if the remote price changed since the last reconciliation
	RemoteChanged bool
	// PolicyRecomputedPrice is the local price recomputed from the current
	// Bling cost through the tenant's policy chain, when computable
	PolicyRecomputedPrice *decimal.Decimal
}

// Decision says what the orchestrator must do with an item after evaluation
type Decision string

const (
	// DecisionNoConflict means the difference is inside tolerance; keep local
	DecisionNoConflict Decision = "NO_CONFLICT"
	// DecisionResolved means a conflict was recorded and resolved synchronously
	DecisionResolved Decision = "RESOLVED"
	// DecisionPending means an unresolved conflict was recorded; the local
	// price stays untouched and the item counts as conflict-pending
	DecisionPending Decision = "PENDING"
)

// Evaluation is the resolver's verdict for one entity.
type Evaluation struct {
	Decision Decision
	// Conflict is non-nil for RESOLVED and PENDING decisions
	Conflict *PriceConflict
	// FinalPrice is the authoritative local price after evaluation. For
	// NO_CONFLICT and PENDING it equals the stored local price.
	FinalPrice decimal.Decimal
	// PriceChanged is true when FinalPrice differs from the stored local price
	PriceChanged bool
}

// ---------------------------------------------------------------------------
// Evaluate
// ---------------------------------------------------------------------------

// Evaluate decides the authoritative price for an entity whose local and
// remote prices may disagree. Pure decision logic: no I/O, deterministic.
//
// tolerancePercent absorbs rounding and timing noise: differences at or below
// it are not conflicts. Above tolerance the conflict is classified, then
// resolved per strategy; StrategyCustom and unclassifiable conflicts are left
// pending rather than guessed.
func Evaluate(
	tenantID uuid.UUID,
	entityType string,
	entityID uuid.UUID,
	localPrice, blingPrice decimal.Decimal,
	tolerancePercent decimal.Decimal,
	strategy ResolutionStrategy,
	baseline Baseline,
) (*Evaluation, error) {
	if localPrice.IsZero() {
		return nil, ErrInvalidBaseline
	}

	difference := blingPrice.Sub(localPrice)
	differencePercent := difference.Abs().Div(localPrice).Mul(oneHundred)
	if differencePercent.LessThanOrEqual(tolerancePercent) {
		return &Evaluation{
			Decision:   DecisionNoConflict,
			FinalPrice: localPrice,
		}, nil
	}

	classifiable := baseline.Known
	conflictType := classify(localPrice, blingPrice, baseline)

	conflict, err := NewPriceConflict(tenantID, entityType, entityID, localPrice, blingPrice, conflictType)
	if err != nil {
		return nil, err
	}

	// Unclassifiable conflicts are recorded but never auto-resolved.
	if !classifiable || strategy == StrategyCustom {
		return &Evaluation{
			Decision:   DecisionPending,
			Conflict:   conflict,
			FinalPrice: localPrice,
		}, nil
	}

	switch strategy {
	case StrategyBlingWins:
		if err := conflict.Resolve(ResolutionTypeBling, blingPrice, nil); err != nil {
			return nil, err
		}
		return &Evaluation{
			Decision:     DecisionResolved,
			Conflict:     conflict,
			FinalPrice:   blingPrice,
			PriceChanged: true,
		}, nil
	case StrategyLocalWins:
		if err := conflict.Resolve(ResolutionTypeLocal, localPrice, nil); err != nil {
			return nil, err
		}
		return &Evaluation{
			Decision:   DecisionResolved,
			Conflict:   conflict,
			FinalPrice: localPrice,
		}, nil
	default:
		return nil, ErrInvalidResolution
	}
}

// classify picks the conflict type from the baseline context.
func classify(localPrice, blingPrice decimal.Decimal, baseline Baseline) ConflictType {
	if !baseline.Known {
		return ConflictTypeDataInconsistency
	}
	if baseline.LocalChanged && baseline.RemoteChanged {
		return ConflictTypeConcurrentModification
	}
	if baseline.PolicyRecomputedPrice != nil {
		distToBling := baseline.PolicyRecomputedPrice.Sub(blingPrice).Abs()
		distToLocal := baseline.PolicyRecomputedPrice.Sub(localPrice).Abs()
		if distToBling.LessThan(distToLocal) {
			return ConflictTypePolicyMismatch
		}
	}
	return ConflictTypeDataInconsistency
}
