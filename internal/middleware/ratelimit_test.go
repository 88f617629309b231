package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLimiter(t *testing.T, cfg RateLimitConfig) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	handler := RateLimitMiddleware(rdb, cfg, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	return handler, mr
}

func hit(handler http.Handler, remoteAddr string, userID int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/gifts/list", nil)
	req.RemoteAddr = remoteAddr
	if userID > 0 {
		req = req.WithContext(WithUser(req.Context(), userID, "someone", "USER"))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// Feature: gift-list, Property 59: Rate limiting blocks excessive requests
func TestProperty_RateLimitingBlocksExcessiveRequests(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("exactly the limit passes and the excess gets 429", prop.ForAll(
		func(limit int, excess int) bool {
			handler, _ := newLimiter(t, RateLimitConfig{RequestsPerWindow: limit, Window: time.Minute, KeyPrefix: "gifts"})

			passed, blocked := 0, 0
			for i := 0; i < limit+excess; i++ {
				w := hit(handler, "192.168.1.100:5000", 0)
				switch w.Code {
				case http.StatusOK:
					passed++
					if w.Header().Get("X-RateLimit-Remaining") != strconv.Itoa(limit-passed) {
						return false
					}
				case http.StatusTooManyRequests:
					blocked++
				}
			}
			return passed == limit && blocked == excess
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRateLimitRejectionUsesTheEnvelope(t *testing.T) {
	handler, _ := newLimiter(t, RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "gifts"})

	hit(handler, "10.0.0.1:1000", 0)
	w := hit(handler, "10.0.0.1:1000", 0)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Code != http.StatusTooManyRequests || resp.Status != "error" {
		t.Errorf("unexpected envelope %+v", resp)
	}
	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 60 {
		t.Errorf("unexpected Retry-After %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("expected X-RateLimit-Reset")
	}
}

func TestRateLimitKeysAuthenticatedUsersSeparately(t *testing.T) {
	handler, mr := newLimiter(t, RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "gifts"})

	if code := hit(handler, "10.0.0.1:1000", 1).Code; code != http.StatusOK {
		t.Fatalf("first request for user 1: expected 200, got %d", code)
	}
	if code := hit(handler, "10.0.0.1:1000", 2).Code; code != http.StatusOK {
		t.Fatalf("user 2 shares an address but not a quota: got %d", code)
	}
	if code := hit(handler, "10.0.0.2:2000", 1).Code; code != http.StatusTooManyRequests {
		t.Fatalf("user 1 from another address: expected 429, got %d", code)
	}
	if ttl := mr.TTL("gifts:user:1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected window expiry on the user key, got %v", ttl)
	}
}

func TestRateLimitByAddressIgnoresPort(t *testing.T) {
	handler, mr := newLimiter(t, RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		KeyPrefix:         "gifts:addr",
		KeyFunc:           AddressKey,
	})

	hit(handler, "10.0.0.1:1000", 7)
	if code := hit(handler, "10.0.0.1:1001", 8).Code; code != http.StatusTooManyRequests {
		t.Fatalf("same host on another port: expected 429, got %d", code)
	}
	if !mr.Exists("gifts:addr:10.0.0.1") {
		t.Errorf("expected address key, have %v", mr.Keys())
	}
}

func TestRateLimitWindowDoesNotSlide(t *testing.T) {
	handler, mr := newLimiter(t, RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, KeyPrefix: "gifts"})

	hit(handler, "10.0.0.1:1000", 0)
	mr.FastForward(40 * time.Second)
	hit(handler, "10.0.0.1:1000", 0)

	if ttl := mr.TTL("gifts:addr:10.0.0.1"); ttl > 20*time.Second {
		t.Errorf("later hits must not extend the window, ttl %v", ttl)
	}
}

func TestRateLimitFailsOpenWhenRedisIsDown(t *testing.T) {
	handler, mr := newLimiter(t, RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, KeyPrefix: "gifts"})
	mr.Close()

	for i := 0; i < 3; i++ {
		if code := hit(handler, "10.0.0.1:1000", 0).Code; code != http.StatusOK {
			t.Fatalf("expected request to pass while redis is unavailable, got %d", code)
		}
	}
}
