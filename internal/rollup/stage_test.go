package rollup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/revenue-cli/internal/model"
)

func TestClassifyStage(t *testing.T) {
	cases := []struct {
		paid, promo, free bool
		want              model.Stage
	}{
		{true, true, true, model.StagePaid},
		{true, false, false, model.StagePaid},
		{false, true, true, model.StagePromoTrial},
		{false, true, false, model.StagePromoTrial},
		{false, false, true, model.StageFreeTrial},
		{false, false, false, model.StageOther},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyStage(c.paid, c.promo, c.free))
	}
}
