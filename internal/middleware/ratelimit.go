package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

// RateLimitKey picks the bucket a request counts against.
type RateLimitKey func(r *http.Request) string

// ClientIPKey counts requests per client address. Session cookies are not
// used: a client that drops them would get a fresh bucket on every request.
func ClientIPKey(r *http.Request) string {
	return "ip:" + clientIPForRateLimit(r)
}

// RateLimit allows at most limit requests per key in each window. A
// non-positive limit disables limiting.
func RateLimit(limit int, per time.Duration, key RateLimitKey) func(http.Handler) http.Handler {
	return rateLimit(limit, per, key, time.Now)
}

func rateLimit(limit int, per time.Duration, key RateLimitKey, now func() time.Time) func(http.Handler) http.Handler {
	if key == nil {
		key = ClientIPKey
	}
	var mu sync.Mutex
	buckets := make(map[string]*bucket)
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			mu.Lock()
			t := now()
			b, ok := buckets[k]
			if !ok || t.After(b.until) {
				b = &bucket{count: 0, until: t.Add(per)}
				buckets[k] = b
			}
			if b.count >= limit {
				retry := b.until.Sub(t)
				mu.Unlock()
				w.Header().Set("Retry-After", retryAfterSeconds(retry))
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			b.count++
			// drop expired buckets while holding the lock
			if len(buckets) > 1024 {
				for id, other := range buckets {
					if t.After(other.until) {
						delete(buckets, id)
					}
				}
			}
			mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds() + 0.999)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func clientIPForRateLimit(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return host
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}

	return r.RemoteAddr
}
