package uaclass

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	uaChromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	uaEdgeWindows   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	uaSafariIPhone  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	uaFirefoxLinux  = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	uaSafariIPad    = "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Safari/604.1"
	uaGooglebot     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	uaCurl          = "curl/8.4.0"
)

func TestHeuristicClassifier(t *testing.T) {
	cases := []struct {
		name    string
		ua      string
		browser string
		os      string
		device  string
	}{
		{"chrome windows", uaChromeWindows, "Chrome", "Windows", "desktop"},
		{"edge not chrome", uaEdgeWindows, "Edge", "Windows", "desktop"},
		{"iphone safari", uaSafariIPhone, "Safari", "iOS", "mobile"},
		{"firefox linux", uaFirefoxLinux, "Firefox", "Linux", "desktop"},
		{"ipad tablet", uaSafariIPad, "Safari", "iOS", "tablet"},
		{"googlebot", uaGooglebot, "Bot", "Other", "bot"},
		{"curl", uaCurl, "curl", "Other", "bot"},
		{"empty", "", "", "", ""},
		{"garbage", "some unknown agent", "Other", "Other", "desktop"},
	}
	classifier := NewHeuristicClassifier(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := classifier.Classify(context.Background(), tc.ua, "203.0.113.9")
			require.NoError(t, err)
			require.Equal(t, tc.browser, result.Browser)
			require.Equal(t, tc.os, result.OS)
			require.Equal(t, tc.device, result.DeviceType)
			require.Empty(t, result.Country)
		})
	}
}

func TestHeuristicClassifierGeoResolver(t *testing.T) {
	geo := func(ctx context.Context, ip string) (string, string, error) {
		require.Equal(t, "203.0.113.9", ip)
		return "DE", "Berlin", nil
	}
	classifier := NewHeuristicClassifier(geo)

	result, err := classifier.Classify(context.Background(), uaChromeWindows, "203.0.113.9")
	require.NoError(t, err)
	require.Equal(t, "DE", result.Country)
	require.Equal(t, "Berlin", result.City)

	// Geo failure still yields the user-agent fields.
	failing := NewHeuristicClassifier(func(ctx context.Context, ip string) (string, string, error) {
		return "", "", errors.New("resolver down")
	})
	result, err = failing.Classify(context.Background(), uaChromeWindows, "203.0.113.9")
	require.Error(t, err)
	require.Equal(t, "Chrome", result.Browser)
}

type countingClassifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingClassifier) Classify(ctx context.Context, userAgent, ip string) (Classification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return Classification{}, c.err
	}
	return Classification{Browser: "Chrome"}, nil
}

func TestWrapLRUMemoizesPerPair(t *testing.T) {
	inner := &countingClassifier{}
	cached := WrapLRU(inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		result, err := cached.Classify(context.Background(), uaChromeWindows, "203.0.113.9")
		require.NoError(t, err)
		require.Equal(t, "Chrome", result.Browser)
	}
	require.Equal(t, 1, inner.calls)

	_, err := cached.Classify(context.Background(), uaChromeWindows, "198.51.100.7")
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestWrapLRUDoesNotCacheErrors(t *testing.T) {
	inner := &countingClassifier{err: errors.New("boom")}
	cached := WrapLRU(inner, 16, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cached.Classify(context.Background(), uaChromeWindows, "203.0.113.9")
		require.Error(t, err)
	}
	require.Equal(t, 2, inner.calls)
}

func TestWrapLRUDegeneratePassthrough(t *testing.T) {
	inner := &countingClassifier{}
	require.Equal(t, Classifier(inner), WrapLRU(inner, 0, time.Minute))
	require.Equal(t, Classifier(inner), WrapLRU(inner, 16, 0))
	require.Nil(t, WrapLRU(nil, 16, time.Minute))
}
