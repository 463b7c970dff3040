package model

// AccessLogFilter narrows access-log queries; zero values mean "no filter".
type AccessLogFilter struct {
	TokenID    string
	From       int64
	To         int64
	IsSuccess  *bool
	Source     string
	Country    string
	DeviceType string
	Browser    string
	OS         string
	OrderDesc  bool
	Limit      uint
	Offset     uint
}

type AccessTotals struct {
	TotalAccessCount  int64   `json:"total_access_count"`
	UniqueAccessCount int64   `json:"unique_access_count"`
	SuccessCount      int64   `json:"success_access_count"`
	FailedCount       int64   `json:"failed_access_count"`
	AverageDurationMs float64 `json:"average_duration_ms"`
	FirstAccessedAt   *int64  `json:"first_accessed_at,omitempty"`
	LastAccessedAt    *int64  `json:"last_accessed_at,omitempty"`
}

// AccessBucket is one daily or hourly rollup row; Key is a YYYY-MM-DD day or
// an hour of day rendered as "0".."23".
type AccessBucket struct {
	Key               string  `json:"key"`
	Count             int64   `json:"count"`
	UniqueVisitors    int64   `json:"unique_visitors"`
	SuccessCount      int64   `json:"success_count"`
	AverageDurationMs float64 `json:"average_duration_ms"`
}

type AccessCategory struct {
	Value          string  `json:"value"`
	Count          int64   `json:"count"`
	UniqueVisitors int64   `json:"unique_visitors"`
	Percentage     float64 `json:"percentage"`
}
