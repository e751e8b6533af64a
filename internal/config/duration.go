package config

import (
	"strings"
	"time"
)

// Duration-valued config fields are Go duration strings ("500ms",
// "1m"). An empty field takes the built-in default; zero and negative
// values are configuration errors rather than silent fallbacks.
func durationOrDefault(section, field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, Errorf(section, "%s: invalid duration %q", field, raw)
	}
	if d <= 0 {
		return 0, Errorf(section, "%s: duration must be positive", field)
	}
	return d, nil
}

// RetryBaseDuration is the first retry delay; later attempts double it.
func (n *NotifierConfig) RetryBaseDuration() (time.Duration, error) {
	return durationOrDefault("notifier", "retry_base", n.RetryBase, 500*time.Millisecond)
}

// RetryMaxDelayDuration caps the doubling backoff.
func (n *NotifierConfig) RetryMaxDelayDuration() (time.Duration, error) {
	return durationOrDefault("notifier", "retry_max_delay", n.RetryMaxDelay, 10*time.Second)
}

// PollTimeoutDuration is the long-poll request timeout in poll mode.
func (b *BotConfig) PollTimeoutDuration() (time.Duration, error) {
	return durationOrDefault("bot", "poll_timeout", b.PollTimeout, 10*time.Second)
}
