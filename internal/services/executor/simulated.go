// -----------------------------------------------------------------------
// Simulated scraping executor - stands in for the real data generators
// -----------------------------------------------------------------------

package executor

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/overseer/internal/common"
	"github.com/ternarybob/overseer/internal/interfaces"
)

// SimulatedScraper pretends to scrape: it waits a random duration on the clock and
// returns a result count just below the job's max_* parameter
type SimulatedScraper struct {
	clock       common.Clock
	minDuration time.Duration
	maxDuration time.Duration
	failureRate float64
	maxResults  int
	logger      arbor.ILogger

	mu   sync.Mutex
	rand *rand.Rand
}

var _ interfaces.JobExecutor = (*SimulatedScraper)(nil)

// NewSimulatedScraper creates the simulated executor. seed fixes the random sequence.
func NewSimulatedScraper(clk common.Clock, config common.ExecutorConfig, seed int64, logger arbor.ILogger) *SimulatedScraper {
	minDuration := common.DurationOr(config.MinDuration, 2*time.Second)
	maxDuration := common.DurationOr(config.MaxDuration, 15*time.Second)
	if maxDuration < minDuration {
		maxDuration = minDuration
	}
	maxResults := config.MaxResults
	if maxResults < 1 {
		maxResults = 50
	}

	return &SimulatedScraper{
		clock:       clk,
		minDuration: minDuration,
		maxDuration: maxDuration,
		failureRate: config.FailureRate,
		maxResults:  maxResults,
		logger:      logger,
		rand:        rand.New(rand.NewSource(seed)),
	}
}

// Execute runs one simulated scrape
func (s *SimulatedScraper) Execute(ctx context.Context, jobType string, params map[string]interface{}) (int, error) {
	limit := resultLimit(params, s.maxResults)
	duration, fail, count := s.roll(limit)

	s.logger.Debug().
		Str("job_type", jobType).
		Dur("duration", duration).
		Int("limit", limit).
		Msg("Simulating scrape")

	if err := common.Sleep(ctx, s.clock, duration); err != nil {
		return 0, fmt.Errorf("%s cancelled: %w", jobType, err)
	}
	if fail {
		return 0, fmt.Errorf("%s: simulated upstream failure", jobType)
	}
	return count, nil
}

func (s *SimulatedScraper) roll(limit int) (time.Duration, bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := s.minDuration
	if spread := s.maxDuration - s.minDuration; spread > 0 {
		duration += time.Duration(s.rand.Int63n(int64(spread) + 1))
	}
	fail := s.rand.Float64() < s.failureRate

	low := limit - 5
	if low < 1 {
		low = 1
	}
	count := low + s.rand.Intn(limit-low+1)
	return duration, fail, count
}

// resultLimit reads the first max_* parameter in key order, falling back to def
func resultLimit(params map[string]interface{}, def int) int {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.HasPrefix(k, "max_") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if n, ok := toInt(params[k]); ok && n > 0 {
			return n
		}
	}
	return def
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
