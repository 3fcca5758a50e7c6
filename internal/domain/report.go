package domain

import "time"

// Report is the archived result of a finished run.
type Report struct {
	RunID      string         `bson:"run_id" json:"run_id"`
	Source     string         `bson:"source" json:"source"`
	Config     CampaignConfig `bson:"config" json:"config"`
	Rows       []OutcomeRow   `bson:"rows" json:"rows"`
	Totals     Totals         `bson:"totals" json:"totals"`
	StartedAt  time.Time      `bson:"started_at" json:"started_at"`
	FinishedAt time.Time      `bson:"finished_at" json:"finished_at"`
}
