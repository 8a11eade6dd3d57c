package provider

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StreamErrorKind classifies a StreamError for retry decisions without the
// resilience layer needing to know which provider produced it.
type StreamErrorKind int

const (
	KindTimeout StreamErrorKind = iota
	KindConnect
	KindRateLimit
	KindTransient
	KindInsufficientQuota
	KindOther
)

func (k StreamErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "Timeout"
	case KindConnect:
		return "Connection error"
	case KindRateLimit:
		return "Rate limited"
	case KindTransient:
		return "Server error"
	case KindInsufficientQuota:
		return "Insufficient API quota"
	default:
		return "Stream Error"
	}
}

// StreamError is a provider-agnostic streaming error (spec §4.4).
type StreamError struct {
	Kind StreamErrorKind

	// RetryAfter is non-nil when the request can be retried after the
	// given duration. Nil means: use exponential backoff, or don't retry.
	RetryAfter *time.Duration

	message string
	source  error
}

func newStreamError(kind StreamErrorKind, message string) *StreamError {
	return &StreamError{Kind: kind, message: message}
}

func TimeoutError(message string) *StreamError   { return newStreamError(KindTimeout, message) }
func ConnectError(message string) *StreamError   { return newStreamError(KindConnect, message) }
func TransientError(message string) *StreamError { return newStreamError(KindTransient, message) }
func OtherError(message string) *StreamError     { return newStreamError(KindOther, message) }

// InsufficientQuotaError builds a non-retryable KindInsufficientQuota
// StreamError. Unlike rate limiting, backing off and retrying a
// quota-exhausted request can't succeed — the caller needs to stop and
// surface the error to the user (spec §4.4/§7).
func InsufficientQuotaError(message string) *StreamError {
	return newStreamError(KindInsufficientQuota, message)
}

// RateLimitError builds a RateLimit StreamError, optionally carrying a
// retry-after duration.
func RateLimitError(retryAfter *time.Duration) *StreamError {
	return &StreamError{Kind: KindRateLimit, RetryAfter: retryAfter, message: "Rate limited"}
}

// WithRetryAfter returns e with RetryAfter set to d.
func (e *StreamError) WithRetryAfter(d time.Duration) *StreamError {
	e.RetryAfter = &d
	return e
}

// WithSource attaches the underlying error for logging/display purposes.
// Callers should make retry decisions based on Kind and RetryAfter, not
// the source.
func (e *StreamError) WithSource(err error) *StreamError {
	e.source = err
	return e
}

func (e *StreamError) Error() string {
	if e.source != nil {
		return fmt.Sprintf("%s: %v", e.message, e.source)
	}
	return e.message
}

func (e *StreamError) Unwrap() error { return e.source }

// IsRetryable reports whether this error is likely retryable.
func (e *StreamError) IsRetryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnect, KindRateLimit, KindTransient:
		return true
	}
	return e.RetryAfter != nil
}

// ClassifyTransportError is the canonical classifier for low-level HTTP
// client errors (failed to connect, timed out, body read/decode failures).
// Provider adapters should delegate to this rather than re-implementing the
// classification logic.
func ClassifyTransportError(err error) *StreamError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutError(err.Error()).WithSource(err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectError(err.Error()).WithSource(err)
	}
	return TransientError(err.Error()).WithSource(err)
}

// ClassifyHTTPError is the canonical classifier for a completed HTTP
// response carrying a non-2xx status, e.g. from an SSE connection that
// failed to open. It extracts Retry-After timing, honours the
// non-standard x-should-retry header used by OpenAI-compatible APIs, and
// checks body against looksLikeQuotaError before the generic
// 429/402/5xx branches so quota exhaustion classifies as the
// non-retryable KindInsufficientQuota rather than a retryable
// RateLimit/Transient.
func ClassifyHTTPError(status int, header http.Header, body string) *StreamError {
	retryAfter := extractRetryAfter(header)

	if (status == 429 || status == 402 || status >= 500) && looksLikeQuotaError(body) {
		return InsufficientQuotaError(fmt.Sprintf("HTTP %d: %s", status, strings.TrimSpace(body)))
	}

	retryable := false
	switch header.Get("x-should-retry") {
	case "true":
		retryable = true
	case "false":
		retryable = false
	default:
		retryable = status == 408 || status == 409 || status == 429 || status >= 500
	}

	if !retryable {
		return OtherError(fmt.Sprintf("HTTP %d", status))
	}
	if status == 429 {
		return RateLimitError(retryAfter)
	}
	err := TransientError(fmt.Sprintf("HTTP %d", status))
	if retryAfter != nil {
		err = err.WithRetryAfter(*retryAfter)
	}
	return err
}

// looksLikeQuotaError is a heuristic check for quota/billing exhaustion
// based on error text. It catches the common patterns across providers:
//   - OpenAI: "insufficient_quota"
//   - Anthropic: "billing_error", "Your credit balance is too low"
//   - Google: "RESOURCE_EXHAUSTED", "Quota exceeded"
//   - OpenRouter: "insufficient credits", "out of credits"
func looksLikeQuotaError(text string) bool {
	lower := strings.ToLower(text)
	for _, pat := range []string{
		"insufficient_quota",
		"insufficient quota",
		"insufficient credits",
		"out of credits",
		"billing_error",
		"credit balance is too low",
		"quota exceeded",
		"resource_exhausted",
	} {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	return false
}

// LooksLikeQuotaError exports looksLikeQuotaError for provider adapters.
func LooksLikeQuotaError(text string) bool { return looksLikeQuotaError(text) }

// extractRetryFromText extracts a retry-after duration from an error
// message body. Last-resort fallback when response headers don't carry
// retry timing. Matches common natural-language patterns found in API
// error responses:
//   - "retry after 30 seconds"
//   - "retry-after: 30"
//   - "wait 30 seconds"
//   - "try again in 5s" / "try again in 5.5s"
//   - `"retryDelay": "30s"` (Google Gemini JSON body)
func extractRetryFromText(text string) *time.Duration {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	for i := range words {
		if i+2 < len(words) && words[i] == "retry" && words[i+1] == "after" {
			if secs, ok := parseSecsToken(words[i+2]); ok {
				d := time.Duration(secs) * time.Second
				return &d
			}
		}
		if i+1 < len(words) && words[i] == "wait" {
			if secs, ok := parseSecsToken(words[i+1]); ok {
				d := time.Duration(secs) * time.Second
				return &d
			}
		}
		if i+3 < len(words) && words[i] == "try" && words[i+1] == "again" && words[i+2] == "in" {
			if secs, ok := parseSecsToken(words[i+3]); ok {
				d := time.Duration(secs) * time.Second
				return &d
			}
		}
	}

	if pos := strings.Index(lower, "retry-after:"); pos >= 0 {
		after := strings.TrimLeft(lower[pos+len("retry-after:"):], " \t")
		digits := leadingDigits(after)
		if digits != "" {
			if secs, err := strconv.ParseUint(digits, 10, 64); err == nil && secs > 0 {
				d := time.Duration(secs) * time.Second
				return &d
			}
		}
	}

	if pos := strings.Index(lower, "retrydelay"); pos >= 0 {
		after := lower[pos:]
		parts := strings.Split(after, `"`)
		for _, p := range parts {
			if strings.HasSuffix(p, "s") && isAllDigits(p[:len(p)-1]) {
				if secs, ok := parseHumanDuration(p); ok {
					d := time.Duration(secs) * time.Second
					return &d
				}
			}
		}
	}

	return nil
}

// ExtractRetryFromText exports extractRetryFromText for provider adapters.
func ExtractRetryFromText(text string) *time.Duration { return extractRetryFromText(text) }

// extractRetryAfter extracts a retry-after duration from common
// rate-limit response headers, checked in decreasing order of authority:
//  1. retry-after-ms — non-standard (OpenAI). Millisecond precision.
//  2. Retry-After — RFC 7231. Integer or float seconds. HTTP-date values
//     are not supported.
//  3. RateLimit — IETF draft t= parameter (delta-seconds).
//  4. x-ratelimit-reset-requests / x-ratelimit-reset-tokens — OpenAI-style
//     human-duration values (e.g. "6m0s"). Takes the longer of the two.
//  5. x-ratelimit-reset — Unix timestamp, converted relative to now.
func extractRetryAfter(header http.Header) *time.Duration {
	if ms, ok := headerPositiveFloat(header, "retry-after-ms"); ok {
		d := time.Duration(ms * float64(time.Millisecond))
		return &d
	}

	if secs, ok := headerPositiveFloat(header, "Retry-After"); ok {
		d := time.Duration(secs * float64(time.Second))
		return &d
	}

	if v := header.Get("ratelimit"); v != "" {
		for _, part := range strings.Split(v, ";") {
			part = strings.TrimSpace(part)
			if rest, ok := strings.CutPrefix(part, "t="); ok {
				if secs, err := strconv.ParseUint(strings.TrimSpace(rest), 10, 64); err == nil && secs > 0 {
					d := time.Duration(secs) * time.Second
					return &d
				}
			}
		}
	}

	requests, reqOK := parseHumanDuration(header.Get("x-ratelimit-reset-requests"))
	tokens, tokOK := parseHumanDuration(header.Get("x-ratelimit-reset-tokens"))
	switch {
	case reqOK && tokOK:
		secs := requests
		if tokens > secs {
			secs = tokens
		}
		d := time.Duration(secs) * time.Second
		return &d
	case reqOK:
		d := time.Duration(requests) * time.Second
		return &d
	case tokOK:
		d := time.Duration(tokens) * time.Second
		return &d
	}

	if resetStr := header.Get("x-ratelimit-reset"); resetStr != "" {
		if resetTS, err := strconv.ParseUint(resetStr, 10, 64); err == nil {
			now := uint64(time.Now().Unix())
			if resetTS > now {
				d := time.Duration(resetTS-now) * time.Second
				return &d
			}
		}
	}

	return nil
}

func headerPositiveFloat(header http.Header, name string) (float64, bool) {
	v := header.Get(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || !isFinite(f) {
		return 0, false
	}
	return f, true
}

func isFinite(f float64) bool {
	return f == f && f < 1e308 && f > -1e308
}

// parseHumanDuration parses a human-style duration string into whole
// seconds. Supported units: h (hours), m (minutes), s (seconds), ms
// (milliseconds — rounded up to 1s if non-zero and total is 0).
//
// Examples: "1s" -> 1, "6m0s" -> 360, "1h30m" -> 5400, "200ms" -> 1.
// Returns ok=false for empty, zero, or unparseable values.
func parseHumanDuration(s string) (uint64, bool) {
	var total uint64
	hasSubSecond := false
	remaining := strings.TrimSpace(s)
	if remaining == "" {
		return 0, false
	}

	for len(remaining) > 0 {
		digits := leadingDigits(remaining)
		if digits == "" {
			return 0, false
		}
		n, err := strconv.ParseUint(digits, 10, 64)
		if err != nil {
			return 0, false
		}
		remaining = remaining[len(digits):]

		switch {
		case strings.HasPrefix(remaining, "ms"):
			hasSubSecond = n > 0
			remaining = remaining[2:]
		case strings.HasPrefix(remaining, "h"):
			total += n * 3600
			remaining = remaining[1:]
		case strings.HasPrefix(remaining, "m"):
			total += n * 60
			remaining = remaining[1:]
		case strings.HasPrefix(remaining, "s"):
			total += n
			remaining = remaining[1:]
		default:
			return 0, false
		}
	}

	if total == 0 && hasSubSecond {
		total = 1
	}
	if total > 0 {
		return total, true
	}
	return 0, false
}

// parseSecsToken parses a token like "30", "30s", "5.5s" into whole
// seconds, rounding up.
func parseSecsToken(s string) (uint64, bool) {
	s = strings.TrimSuffix(s, "s")
	s = strings.TrimSuffix(s, "second")
	s = strings.TrimSuffix(s, ",")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || !isFinite(f) {
		return 0, false
	}
	secs := uint64(f)
	if f > float64(secs) {
		secs++
	}
	return secs, true
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
