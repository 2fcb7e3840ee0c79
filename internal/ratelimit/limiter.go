package ratelimit

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter is an in-memory sliding-window rate limiter per key.
type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	buckets map[string]Bucket
	now     func() time.Time
}

// New creates a limiter with the named buckets.
func New(buckets map[string]Bucket) *Limiter {
	return &Limiter{
		hits:    make(map[string][]time.Time),
		buckets: buckets,
		now:     time.Now,
	}
}

// Allow checks if a request identified by key is within the rate limit for the
// given bucket. Returns true if allowed.
func (l *Limiter) Allow(key string, bucket Bucket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	pruned := prune(l.hits[key], now.Add(-bucket.Window))

	if len(pruned) >= bucket.MaxRequests {
		l.hits[key] = pruned
		return false
	}

	l.hits[key] = append(pruned, now)
	return true
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Permit reports whether the client behind r is within the named bucket's
// limit. When it is not, retry is the bucket window in seconds.
func (l *Limiter) Permit(r *http.Request, bucketName string) (ok bool, retry int) {
	bucket, found := l.buckets[bucketName]
	if !found {
		bucket = Bucket{MaxRequests: 60, Window: time.Minute}
	}

	key := bucketName + ":" + ClientIP(r)
	if l.Allow(key, bucket) {
		return true, 0
	}
	return false, int(bucket.Window.Seconds())
}

// ClientIP returns the client address without its port. chi's RealIP
// middleware has already replaced RemoteAddr with the proxy-reported IP when
// one was sent; otherwise RemoteAddr is host:port of the TCP peer.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Check writes a 429 response if the client IP is over the named bucket's
// limit. Returns true if the request was rejected.
func (l *Limiter) Check(w http.ResponseWriter, r *http.Request, bucketName string) bool {
	ok, retry := l.Permit(r, bucketName)
	if ok {
		return false
	}

	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]any{
		"error":               "Rate limited",
		"retry_after_seconds": retry,
	})
	return true
}

// Sweep drops keys with no hits inside the longest window, so idle clients do
// not accumulate. It returns the number of keys removed.
func (l *Limiter) Sweep() int {
	var longest time.Duration
	for _, b := range l.buckets {
		longest = max(longest, b.Window)
	}
	if longest == 0 {
		longest = time.Minute
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-longest)
	removed := 0
	for key, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, key)
			removed++
		}
	}
	return removed
}

// SweepLoop calls Sweep every interval until ctx is cancelled.
func (l *Limiter) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
