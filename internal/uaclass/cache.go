package uaclass

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// WrapLRU memoizes classification results per (user-agent, ip) pair. Repeat
// visitors hammer the access path with identical context, so this keeps the
// classifier off the hot path for them. Errors are not cached.
func WrapLRU(next Classifier, size int, ttl time.Duration) Classifier {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruClassifier{
		next:  next,
		cache: expirable.NewLRU[string, Classification](size, nil, ttl),
	}
}

type lruClassifier struct {
	next  Classifier
	cache *expirable.LRU[string, Classification]
}

func (l *lruClassifier) Classify(ctx context.Context, userAgent, ip string) (Classification, error) {
	key := userAgent + "|" + ip
	if cached, ok := l.cache.Get(key); ok {
		return cached, nil
	}
	result, err := l.next.Classify(ctx, userAgent, ip)
	if err != nil {
		return result, err
	}
	l.cache.Add(key, result)
	return result, nil
}
