package harvest

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures every knob that influences a harvest run. All values
// originate from Viper so the pipeline can be configured via files, env vars,
// or CLI flags.
type Config struct {
	Keywords           []string
	MaxRecords         int // 0 = unlimited
	MaxPagesPerKeyword int // 0 = unlimited
	MaxPageRetries     int // bound on pagination-mismatch retries per page

	PageDelay       time.Duration
	PageDelayJitter time.Duration
	LookupDelay     time.Duration
	LookupJitter    time.Duration
	ExtendedDelay   time.Duration
	LongPauseEvery  int // every Nth page gets the long pause
	LongPause       time.Duration
	LongPauseJitter time.Duration

	Debug bool
}

// LoadConfig constructs a Config by reading from Viper.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Keywords:           normalizeKeywords(v.GetStringSlice("harvest.keywords")),
		MaxRecords:         v.GetInt("harvest.max_records"),
		MaxPagesPerKeyword: v.GetInt("harvest.max_pages"),
		MaxPageRetries:     v.GetInt("harvest.max_page_retries"),
		PageDelay:          v.GetDuration("harvest.page_delay"),
		PageDelayJitter:    v.GetDuration("harvest.page_delay_jitter"),
		LookupDelay:        v.GetDuration("harvest.lookup_delay"),
		LookupJitter:       v.GetDuration("harvest.lookup_jitter"),
		ExtendedDelay:      v.GetDuration("harvest.extended_delay"),
		LongPauseEvery:     v.GetInt("harvest.long_pause_every"),
		LongPause:          v.GetDuration("harvest.long_pause"),
		LongPauseJitter:    v.GetDuration("harvest.long_pause_jitter"),
		Debug:              v.GetBool("harvest.debug"),
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if len(c.Keywords) == 0 {
		return fmt.Errorf("harvest.keywords must include at least one keyword")
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("harvest.max_records must be >= 0")
	}
	if c.MaxPagesPerKeyword < 0 {
		return fmt.Errorf("harvest.max_pages must be >= 0")
	}
	if c.MaxPageRetries <= 0 {
		return fmt.Errorf("harvest.max_page_retries must be > 0")
	}
	if c.PageDelay < 0 || c.LookupDelay < 0 || c.ExtendedDelay < 0 || c.LongPause < 0 {
		return fmt.Errorf("harvest delays must be >= 0")
	}
	if c.LongPauseEvery < 0 {
		return fmt.Errorf("harvest.long_pause_every must be >= 0")
	}
	return nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{})
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
