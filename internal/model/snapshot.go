package model

import "time"

// SnapshotRow is one immutable historical ARR observation for an org.
// Rows are keyed by (SnapshotDate, OrgID) and append-only.
type SnapshotRow struct {
	SnapshotDate time.Time `json:"snapshot_date"` // first of month, UTC midnight
	OrgID        string    `json:"org_id"`
	BOMARR       float64   `json:"bom_arr"`
	EOMARR       float64   `json:"eom_arr"`
}

// Key returns the append-idempotency key for the row.
func (s SnapshotRow) Key() string {
	return s.SnapshotDate.UTC().Format("2006-01-02") + "|" + s.OrgID
}

// WaterfallMetric names one of the five decomposition rows emitted per
// snapshot×org pair.
type WaterfallMetric string

const (
	MetricSOM       WaterfallMetric = "som"
	MetricUpgrade   WaterfallMetric = "upgrade"
	MetricDowngrade WaterfallMetric = "downgrade"
	MetricChurn     WaterfallMetric = "churn"
	MetricEOM       WaterfallMetric = "eom"
)

// Metrics lists the five waterfall metrics in emission order.
func Metrics() []WaterfallMetric {
	return []WaterfallMetric{MetricSOM, MetricUpgrade, MetricDowngrade, MetricChurn, MetricEOM}
}

// WaterfallFact is one derived metric row. Five facts are always emitted
// together per snapshot row, satisfying EOM = SOM + Upgrade - Downgrade - Churn.
type WaterfallFact struct {
	SnapshotDate time.Time       `json:"snapshot_date"`
	Cohort       string          `json:"cohort"`
	OrgID        string          `json:"org_id"`
	Metric       WaterfallMetric `json:"metric"`
	Amount       float64         `json:"amount"`
}

// WaterfallTotals holds the five summed metrics for one aggregation key
// (a cohort month or an org).
type WaterfallTotals struct {
	Key       string  `json:"key"`
	SOM       float64 `json:"som"`
	Upgrade   float64 `json:"upgrade"`
	Downgrade float64 `json:"downgrade"`
	Churn     float64 `json:"churn"`
	EOM       float64 `json:"eom"`
}

// RetentionSummary holds the retention/churn scalars computed from the
// latest snapshot date. Ratios are 0 when the base population is empty.
type RetentionSummary struct {
	SnapshotDate  time.Time `json:"snapshot_date"`
	BaseOrgs      int       `json:"base_orgs"`
	ChurnedOrgs   int       `json:"churned_orgs"`
	SumBOM        float64   `json:"sum_bom_arr"`
	SumEOM        float64   `json:"sum_eom_arr"`
	NRR           float64   `json:"nrr"`
	GRR           float64   `json:"grr"`
	LogoChurnRate float64   `json:"logo_churn_rate"`
	GrossARRChurn float64   `json:"gross_arr_churn_rate"`
	FullARRChurn  float64   `json:"full_arr_churn_rate"`
	ComputedAt    time.Time `json:"computed_at"`
}

// OrgSeries is one org's projected MRR across the month axis of an
// MRRSeries; Values is index-aligned with Months.
type OrgSeries struct {
	OrgKey  string    `json:"org_key"`
	OrgName string    `json:"org_name,omitempty"`
	Values  []float64 `json:"values"`
}

// MRRSeries is the forward monthly-recurring-revenue projection: a rolling
// calendar-month axis with one value row per org.
type MRRSeries struct {
	Months []time.Time `json:"months"` // first of month, UTC midnight
	Orgs   []OrgSeries `json:"orgs"`
}
