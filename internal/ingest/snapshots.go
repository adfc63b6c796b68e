package ingest

import (
	"time"

	"github.com/sells-group/revenue-cli/internal/model"
)

var snapshotAliases = Aliases{
	"snapshot_date": {"snapshot_date", "date", "month"},
	"org_id":        {"org_id", "organization_id"},
	"bom_arr":       {"bom_arr", "beginning_arr", "som_arr"},
	"eom_arr":       {"eom_arr", "ending_arr"},
}

// ParseSnapshots normalizes the append-only ARR snapshot history. Rows
// with an unparseable date or empty org id are skipped and counted.
func ParseSnapshots(t *Table, overrides Aliases) ([]model.SnapshotRow, ParseStats, error) {
	t.Bind(snapshotAliases.merge(overrides))
	if err := t.Require("snapshot_date", "org_id", "bom_arr", "eom_arr"); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{Rows: len(t.Rows)}
	rows := make([]model.SnapshotRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		date := parseTimePtr(t.Get(row, "snapshot_date"))
		orgID := t.Get(row, "org_id")
		if date == nil || orgID == "" {
			stats.Skipped++
			continue
		}
		d := date.UTC()
		rows = append(rows, model.SnapshotRow{
			SnapshotDate: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			OrgID:        orgID,
			BOMARR:       round2(parseFloatOr(t.Get(row, "bom_arr"), 0)),
			EOMARR:       round2(parseFloatOr(t.Get(row, "eom_arr"), 0)),
		})
		stats.Kept++
	}
	return rows, stats, nil
}
