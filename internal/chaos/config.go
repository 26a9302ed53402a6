package chaos

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds chaos configuration
type Config struct {
	Enabled        bool
	Profile        string
	TargetSymbol   string
	TargetCommands []string // command kinds to hit; empty hits all
	DropPct        int
	DelayMsMin     int
	DelayMsMax     int
	CommitFailPct  int
	Seed           int64
	WindowMs       int
}

// Profile is the parsed form of CHAOS_PROFILE, e.g.
// "drop-pct=30,delay=50-250,commit-fail-pct=5,commands=AMEND|CANCEL"
type Profile struct {
	DropPct       int
	DelayMsMin    int
	DelayMsMax    int
	CommitFailPct int
	Commands      []string
}

// LoadConfig loads chaos configuration from CHAOS_* environment variables
func LoadConfig() *Config {
	return &Config{
		Enabled:        getEnvAsBool("CHAOS_ENABLED", false),
		Profile:        getEnvAsString("CHAOS_PROFILE", ""),
		TargetSymbol:   getEnvAsString("CHAOS_TARGET_SYMBOL", ""),
		TargetCommands: splitCommands(getEnvAsString("CHAOS_TARGET_COMMANDS", ""), ","),
		DropPct:        getEnvAsInt("CHAOS_DROP_PCT", 0),
		DelayMsMin:     getEnvAsInt("CHAOS_DELAY_MS_MIN", 0),
		DelayMsMax:     getEnvAsInt("CHAOS_DELAY_MS_MAX", 0),
		CommitFailPct:  getEnvAsInt("CHAOS_COMMIT_FAIL_PCT", 0),
		Seed:           getEnvAsInt64("CHAOS_SEED", 1),
		WindowMs:       getEnvAsInt("CHAOS_WINDOW_MS", 0),
	}
}

// Validate checks percentages and delay bounds
func (c *Config) Validate() error {
	for name, pct := range map[string]int{"drop pct": c.DropPct, "commit fail pct": c.CommitFailPct} {
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%s must be within 0-100, got %d", name, pct)
		}
	}
	if c.DelayMsMin < 0 || c.DelayMsMax < 0 {
		return fmt.Errorf("delay bounds must not be negative")
	}
	return nil
}

// apply overrides cfg with every value the profile sets
func (p Profile) apply(cfg *Config) {
	if p.DropPct > 0 {
		cfg.DropPct = p.DropPct
	}
	if p.DelayMsMin > 0 || p.DelayMsMax > 0 {
		cfg.DelayMsMin, cfg.DelayMsMax = p.DelayMsMin, p.DelayMsMax
	}
	if p.CommitFailPct > 0 {
		cfg.CommitFailPct = p.CommitFailPct
	}
	if len(p.Commands) > 0 {
		cfg.TargetCommands = p.Commands
	}
}

// ParseProfile parses a comma-separated list of key=value entries
func ParseProfile(profile string) (Profile, error) {
	var p Profile
	for _, part := range strings.Split(profile, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Profile{}, fmt.Errorf("invalid chaos profile entry %q, want key=value", part)
		}

		var err error
		switch key {
		case "drop-pct":
			p.DropPct, err = parsePct(key, value)
		case "commit-fail-pct":
			p.CommitFailPct, err = parsePct(key, value)
		case "delay":
			p.DelayMsMin, p.DelayMsMax, err = parseRange(value)
		case "commands":
			p.Commands = splitCommands(value, "|")
		default:
			err = fmt.Errorf("unknown chaos profile entry %q", part)
		}
		if err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}

func parsePct(key, value string) (int, error) {
	pct, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("%s must be within 0-100, got %d", key, pct)
	}
	return pct, nil
}

func parseRange(value string) (lo, hi int, err error) {
	from, to, ok := strings.Cut(value, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid delay %q, want min-max", value)
	}
	if lo, err = strconv.Atoi(from); err != nil {
		return 0, 0, fmt.Errorf("invalid delay min: %w", err)
	}
	if hi, err = strconv.Atoi(to); err != nil {
		return 0, 0, fmt.Errorf("invalid delay max: %w", err)
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("delay min %d is above max %d", lo, hi)
	}
	return lo, hi, nil
}

func splitCommands(s, sep string) []string {
	var out []string
	for _, c := range strings.Split(s, sep) {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func getEnvAsString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
