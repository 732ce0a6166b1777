package model

import "time"

// SyncStatus describes the latest guild reconciliation. Values are replaced
// wholesale, never mutated in place.
type SyncStatus struct {
	LastRun           *time.Time `json:"last_run"`
	LastSuccess       *time.Time `json:"last_success"`
	LastError         *string    `json:"last_error"`
	LastGuildCount    int        `json:"last_guild_count"`
	LastRoleCount     int        `json:"last_role_count"`
	LastTemplateCount int        `json:"last_template_count"`
	LastDurationMs    *float64   `json:"last_duration_ms"`
	IntervalSeconds   int        `json:"interval_seconds"`
}
