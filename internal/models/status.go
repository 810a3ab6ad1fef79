package models

import "time"

// HealthStatus статус локального HTTP API киоска
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Redis     string    `json:"redis"`
	Uptime    string    `json:"uptime"`
}

// StatsResponse статистика голосов устройства
type StatsResponse struct {
	DeviceID           string  `json:"deviceId"`
	TotalVotes         int64   `json:"totalVotes"`
	ApprovedVotes      int64   `json:"approvedVotes"`
	SuspiciousVotes    int64   `json:"suspiciousVotes"`
	RejectedVotes      int64   `json:"rejectedVotes"`
	Timeouts           int64   `json:"timeouts"`
	SubmissionFailures int64   `json:"submissionFailures"`
	ApprovalRate       float64 `json:"approvalRate"`
}
