package models

import "time"

// AdminStats is the admin dashboard payload.
type AdminStats struct {
	TotalUsers     int64           `json:"totalUsers"`
	TotalAdmins    int64           `json:"totalAdmins"`
	TotalSpecimens int64           `json:"totalSpecimens"`
	DailyScans     []DailyCount    `json:"dailyScans"`
	Rarity         []LabelCount    `json:"rarityDistribution"`
	TopMinerals    []LabelCount    `json:"topMinerals"`
	System         *SystemSnapshot `json:"system,omitempty"`
	GeneratedAt    time.Time       `json:"generatedAt"`
}

// DailyCount is the number of specimens logged on a calendar day (UTC).
type DailyCount struct {
	Date  string `json:"date" bson:"_id"` // YYYY-MM-DD
	Count int64  `json:"count" bson:"count"`
}

// LabelCount is a generic grouped count.
type LabelCount struct {
	Label string `json:"label" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

// SystemSnapshot is a point-in-time sample of the host running the API.
type SystemSnapshot struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryPercent float64 `json:"memoryPercent"`
	MemoryUsedMB  uint64  `json:"memoryUsedMB"`
	UptimeSeconds uint64  `json:"uptimeSeconds"`
	Goroutines    int     `json:"goroutines"`
}
