package uaclass

import (
	"context"
	"strings"
)

// GeoResolver maps an IP to country/city. Geo lookup lives outside this
// package (maxmind, upstream header, ...); the zero value leaves both empty.
type GeoResolver func(ctx context.Context, ip string) (country, city string, err error)

// HeuristicClassifier derives browser/OS/device from user-agent substrings.
// It is deliberately coarse: analytics dimensions, not feature detection.
type HeuristicClassifier struct {
	geo GeoResolver
}

func NewHeuristicClassifier(geo GeoResolver) *HeuristicClassifier {
	return &HeuristicClassifier{geo: geo}
}

func (c *HeuristicClassifier) Classify(ctx context.Context, userAgent, ip string) (Classification, error) {
	ua := strings.ToLower(userAgent)
	result := Classification{
		Browser:    detectBrowser(ua),
		OS:         detectOS(ua),
		DeviceType: detectDevice(ua),
	}
	if c.geo != nil && ip != "" {
		country, city, err := c.geo(ctx, ip)
		if err != nil {
			return result, err
		}
		result.Country = country
		result.City = city
	}
	return result, nil
}

func detectBrowser(ua string) string {
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		return "Opera"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "chrome/"):
		return "Chrome"
	case strings.Contains(ua, "safari/"):
		return "Safari"
	case strings.Contains(ua, "curl/"):
		return "curl"
	case strings.Contains(ua, "wget/"):
		return "wget"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "spider") || strings.Contains(ua, "crawler"):
		return "Bot"
	}
	return "Other"
}

func detectOS(ua string) string {
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "linux"):
		return "Linux"
	}
	return "Other"
}

func detectDevice(ua string) string {
	switch {
	case ua == "":
		return ""
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "spider") || strings.Contains(ua, "crawler"),
		strings.Contains(ua, "curl/"), strings.Contains(ua, "wget/"):
		return "bot"
	}
	return "desktop"
}
