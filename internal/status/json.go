package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event              string     `json:"event,omitempty"`
	Reason             string     `json:"reason,omitempty"`
	TodaySteps         int64      `json:"today_steps"`
	Goal               int64      `json:"goal"`
	GoalReached        bool       `json:"goal_reached"`
	Paused             bool       `json:"paused"`
	HasData            bool       `json:"has_data"`
	TotalSinceBoot     int64      `json:"total_since_boot"`
	LastPersistedSteps int64      `json:"last_persisted_steps"`
	LastPersistTime    string     `json:"last_persist_time,omitempty"`
	UptimeSeconds      int64      `json:"uptime_seconds"`
	StartTime          string     `json:"start_time"`
	Timestamp          string     `json:"timestamp"`
	MQTT               MQTTStatus `json:"mqtt"`
	Counts             CountsJSON `json:"counts"`
	Config             ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of outcome counts.
type CountsJSON struct {
	Persists        int `json:"persists"`
	PersistFailures int `json:"persist_failures"`
	InvalidReadings int `json:"invalid_readings"`
	Pauses          int `json:"pauses"`
	Resumes         int `json:"resumes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	DBPath       string `json:"db_path"`
	Goal         int64  `json:"goal"`
	BatchDelayMs int64  `json:"batch_delay_ms"`
	Pin          int    `json:"pin"`
}

func toStatusJSON(s Snapshot, event, reason string) StatusJSON {
	inner := StatusInner{
		Event:              event,
		Reason:             reason,
		TodaySteps:         s.TodaySteps,
		Goal:               s.Goal,
		GoalReached:        s.GoalReached(),
		Paused:             s.Paused,
		HasData:            s.HasReading,
		TotalSinceBoot:     s.TotalSinceBoot,
		LastPersistedSteps: s.LastPersistedSteps,
		UptimeSeconds:      int64(s.Uptime().Truncate(time.Second).Seconds()),
		StartTime:          s.StartTime.UTC().Format(time.RFC3339),
		Timestamp:          s.Now.UTC().Format(time.RFC3339),
		MQTT:               MQTTStatus{Connected: s.MQTTConnected, Broker: s.Config.Broker},
		Counts: CountsJSON{
			Persists:        s.Counts.Persists,
			PersistFailures: s.Counts.PersistFailures,
			InvalidReadings: s.Counts.InvalidReadings,
			Pauses:          s.Counts.Pauses,
			Resumes:         s.Counts.Resumes,
		},
		Config: ConfigJSON{
			Broker:       s.Config.Broker,
			HTTPAddr:     s.Config.HTTPAddr,
			DBPath:       s.Config.DBPath,
			Goal:         s.Config.Goal,
			BatchDelayMs: s.Config.BatchDelayMs,
			Pin:          s.Config.Pin,
		},
	}
	if !s.LastPersistTime.IsZero() {
		inner.LastPersistTime = s.LastPersistTime.UTC().Format(time.RFC3339)
	}
	return StatusJSON{Status: inner}
}

// FormatStatusEvent creates the compact JSON payload for a system
// lifecycle event carrying a full status snapshot.
func FormatStatusEvent(s Snapshot, event, reason string) []byte {
	data, _ := json.Marshal(toStatusJSON(s, event, reason))
	return data
}

// FormatStatusIndent creates the indented JSON served by the HTTP
// status endpoint.
func FormatStatusIndent(s Snapshot) []byte {
	data, _ := json.MarshalIndent(toStatusJSON(s, "", ""), "", "  ")
	return data
}
