// Package moderation provides the content and abuse guard for random-chat
// messages: per-user rate limiting, content filtering and report-reason
// weighting used by suspension decisions.
package moderation

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"friendfinder/backend/internal/config"
)

// Severity levels attached to moderation results.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Rejection reasons returned by ModerateContent.
const (
	ReasonRateLimited = "rate_limited"
	ReasonEmpty       = "empty"
	ReasonTooLong     = "too long"
	ReasonBadWord     = "inappropriate content"
	ReasonSuspicious  = "suspicious content"
	ReasonCapitals    = "excessive capitals"
)

// Result is the structured outcome of a moderation pass.
type Result struct {
	IsAllowed       bool   `json:"isAllowed"`
	Reason          string `json:"reason,omitempty"`
	Severity        string `json:"severity"`
	FilteredContent string `json:"filteredContent,omitempty"`
}

// Options toggles individual pipeline checks. The zero value enables
// everything.
type Options struct {
	SkipRateLimit bool
	MaxLength     int // 0 means config.MaxMessageLength
}

var (
	phonePattern = regexp.MustCompile(`(\+?\d[\d\s\-()]{7,}\d)`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	urlPattern   = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
)

// hasRepeatedRun reports whether content contains config.RepeatedCharRun or
// more of the same rune in a row. RE2 has no backreferences, so this is a
// plain scan.
func hasRepeatedRun(content string) bool {
	var prev rune
	run := 0
	for _, r := range content {
		if r == prev {
			run++
			if run >= config.RepeatedCharRun {
				return true
			}
		} else {
			prev, run = r, 1
		}
	}
	return false
}

// Слова фільтруються по підрядку після приведення до нижнього регістру.
var inappropriateWords = []string{
	"spamlink", "free money", "casino bonus", "onlyfans",
}

// Guard performs content moderation with per-user sliding-window rate limits.
type Guard struct {
	mu      sync.Mutex
	windows map[string][]time.Time

	maxMessages int
	window      time.Duration
	now         func() time.Time
}

// NewGuard створює guard із лімітами зі config.
func NewGuard() *Guard {
	return &Guard{
		windows:     make(map[string][]time.Time),
		maxMessages: config.RateLimitMaxMessages,
		window:      config.RateLimitWindow,
		now:         time.Now,
	}
}

// ModerateContent runs the full pipeline for one message, short-circuiting on
// the first failing check. Check order: rate limit, empty, length, word list,
// suspicious patterns, excessive capitals.
func (g *Guard) ModerateContent(content, userID string, opts Options) Result {
	if !opts.SkipRateLimit && !g.allowMessage(userID) {
		return Result{IsAllowed: false, Reason: ReasonRateLimited, Severity: SeverityMedium}
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Result{IsAllowed: false, Reason: ReasonEmpty, Severity: SeverityLow}
	}

	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = config.MaxMessageLength
	}
	if len(trimmed) > maxLen {
		return Result{IsAllowed: false, Reason: ReasonTooLong, Severity: SeverityLow}
	}

	lower := strings.ToLower(trimmed)
	for _, word := range inappropriateWords {
		if strings.Contains(lower, word) {
			return Result{IsAllowed: false, Reason: ReasonBadWord, Severity: SeverityHigh}
		}
	}

	if phonePattern.MatchString(trimmed) || emailPattern.MatchString(trimmed) ||
		urlPattern.MatchString(trimmed) || hasRepeatedRun(trimmed) {
		return Result{IsAllowed: false, Reason: ReasonSuspicious, Severity: SeverityMedium}
	}

	if excessiveCapitals(trimmed) {
		return Result{IsAllowed: false, Reason: ReasonCapitals, Severity: SeverityLow}
	}

	return Result{IsAllowed: true, Severity: SeverityLow, FilteredContent: trimmed}
}

// allowMessage records an attempt and reports whether the user is still under
// the sliding-window limit.
func (g *Guard) allowMessage(userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)

	window := g.windows[userID]
	kept := window[:0]
	for _, t := range window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= g.maxMessages {
		g.windows[userID] = kept
		return false
	}

	g.windows[userID] = append(kept, now)
	return true
}

// Sweep видаляє застарілі вікна, щоб обмежити пам'ять. Викликається
// періодично з менеджера.
func (g *Guard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.window)
	for userID, window := range g.windows {
		stale := true
		for _, t := range window {
			if t.After(cutoff) {
				stale = false
				break
			}
		}
		if stale {
			delete(g.windows, userID)
		}
	}
}

// StartSweeper запускає фонове прибирання до закриття stop.
func (g *Guard) StartSweeper(stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(config.RateLimitSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

func excessiveCapitals(content string) bool {
	if len(content) <= config.MinLengthForCapitals {
		return false
	}
	var letters, upper int
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) > config.MaxCapitalsRatio
}
