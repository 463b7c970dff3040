// Package uaclass classifies raw request context (user-agent string, IP)
// into the browser/OS/device/geo fields attached to access-log entries.
// Classification is best effort; callers treat failures as empty fields.
package uaclass

import "context"

type Classification struct {
	Browser    string
	OS         string
	DeviceType string
	Country    string
	City       string
}

type Classifier interface {
	Classify(ctx context.Context, userAgent, ip string) (Classification, error)
}
