package rollup

import "github.com/sells-group/revenue-cli/internal/model"

// ClassifyStage assigns exactly one lifecycle stage from the rollup's
// evidence booleans, evaluated in priority order: paid status always
// dominates, so an org trialing one subscription while paying for another
// is Paid.
func ClassifyStage(hasPaid, hasPromo, hasFree bool) model.Stage {
	switch {
	case hasPaid:
		return model.StagePaid
	case hasPromo:
		return model.StagePromoTrial
	case hasFree:
		return model.StageFreeTrial
	default:
		return model.StageOther
	}
}
