package domain

import "time"

// ConfigVersion is an immutable, timestamped parameter set produced by
// the optimizer, written alongside sidecar metadata about the run that
// produced it.
type ConfigVersion struct {
	ID         string // timestamp id, e.g. "20260730-140500"
	CreatedAt  time.Time
	Parameters map[string]float64
	Metadata   OptimizerRunMetadata
	BackupOf   string // ID of the config this one superseded, empty if none
}

// OptimizerRunMetadata records the walk-forward segments and Monte-Carlo
// statistics that justified deploying (or not deploying) a ConfigVersion.
type OptimizerRunMetadata struct {
	SegmentCount       int
	TrainDays          int
	EmbargoDays        int
	OOSDays            int
	AggregateOOSSharpe float64
	AggregateOOSCAGR   float64
	MCP95Drawdown      float64
	MCP99Drawdown      float64
	BaselineSharpe     float64
	BaselineCAGR       float64
	Deployed           bool
	RejectReason       string
}

// ImprovesOn reports whether this run's aggregate OOS metrics clear the
// deployment gate relative to the baseline recorded in
// Metadata.
func (m OptimizerRunMetadata) ImprovesOn(minImproveSharpe, minImproveAnnualized float64) bool {
	sharpeGain := m.AggregateOOSSharpe - m.BaselineSharpe
	cagrGain := m.AggregateOOSCAGR - m.BaselineCAGR
	return sharpeGain >= minImproveSharpe && cagrGain >= minImproveAnnualized
}
