package model

type AccessLogEntry struct {
	ID            string `json:"id"`
	TokenID       string `json:"token_id"`
	SnippetID     string `json:"snippet_id"`
	IPAddress     string `json:"ip_address"`
	UserAgent     string `json:"user_agent"`
	Referer       string `json:"referer"`
	Source        string `json:"source"`
	SessionID     string `json:"session_id"`
	Country       string `json:"country"`
	City          string `json:"city"`
	Browser       string `json:"browser"`
	OS            string `json:"os"`
	DeviceType    string `json:"device_type"`
	IsSuccess     bool   `json:"is_success"`
	FailureReason string `json:"failure_reason,omitempty"`
	DurationMs    int64  `json:"duration_ms"`
	IsFirstAccess bool   `json:"is_first_access"`
	AccessNumber  int64  `json:"access_number"`
	AccessDay     string `json:"access_day"`
	AccessHour    int    `json:"access_hour"`
	AccessedAt    int64  `json:"accessed_at"`
}
