// Package maintenance keeps a persisted history of full-run durations and
// derives the acute (stall/jam) and long-term (trend) maintenance signals.
package maintenance

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Config holds the maintenance constants.
type Config struct {
	Capacity   int           // history size
	Baseline   time.Duration // expected full-travel time
	AcuteRatio float64       // elapsed > Baseline*AcuteRatio is an acute anomaly
}

// DefaultConfig returns the factory maintenance constants.
func DefaultConfig() Config {
	return Config{
		Capacity:   10,
		Baseline:   8000 * time.Millisecond,
		AcuteRatio: 1.3,
	}
}

// Engine records run durations and computes maintenance signals.
// Every accepted sample is written through to the Store.
// Not safe for concurrent use.
type Engine struct {
	cfg   Config
	ring  *Ring
	store Store
	log   zerolog.Logger
}

// NewEngine creates an engine and loads any persisted history from store.
// Unreadable or inconsistent persisted data is discarded with a warning.
func NewEngine(store Store, cfg Config, log zerolog.Logger) (*Engine, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.Baseline <= 0 || cfg.AcuteRatio <= 0 {
		return nil, errors.New("baseline and acute ratio must be positive")
	}

	e := &Engine{
		cfg:   cfg,
		ring:  NewRing(cfg.Capacity),
		store: store,
		log:   log,
	}
	if err := e.load(); err != nil {
		log.Warn().Err(err).Msg("discarding persisted history")
		e.ring.Reset()
	}
	log.Info().Int("count", e.ring.Len()).Msg("history loaded")
	return e, nil
}

func (e *Engine) load() error {
	cursorB, err := e.store.Get(KeyCursor)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	countB, err := e.store.Get(KeyCount)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	cursor, err := decodeInt(cursorB)
	if err != nil {
		return err
	}
	count, err := decodeInt(countB)
	if err != nil {
		return err
	}
	capacity := e.ring.Cap()
	if count < 0 || count > capacity || cursor < 0 || cursor >= capacity {
		return fmt.Errorf("cursor %d / count %d out of range for capacity %d", cursor, count, capacity)
	}
	if count < capacity && cursor != count {
		return fmt.Errorf("cursor %d does not match partial count %d", cursor, count)
	}
	if count == 0 {
		return nil
	}

	histB, err := e.store.Get(KeyHistory)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	samples, err := decodeSamples(histB, capacity)
	if err != nil {
		return err
	}
	e.ring.restore(samples, cursor, count)
	return nil
}

// persist writes buffer, cursor and count in one batch so a power cut
// never leaves them out of step. Failures are logged only: the in-memory
// history stays authoritative.
func (e *Engine) persist() {
	r := e.ring
	err := e.store.PutBatch(
		Entry{KeyHistory, encodeSamples(r.buf)},
		Entry{KeyCursor, encodeInt(r.cursor)},
		Entry{KeyCount, encodeInt(r.count)},
	)
	if err != nil {
		e.log.Error().Err(err).Msg("persist history")
	}
}

// RecordRun appends a full-run duration and persists the history.
func (e *Engine) RecordRun(d time.Duration) {
	e.ring.Push(d.Milliseconds())
	e.persist()
	e.log.Info().Int64("duration_ms", d.Milliseconds()).Int("count", e.ring.Len()).Msg("recorded run")
}

// AcuteThreshold returns the elapsed time above which a run is anomalous.
func (e *Engine) AcuteThreshold() time.Duration {
	return time.Duration(float64(e.cfg.Baseline) * e.cfg.AcuteRatio)
}

// CheckAcuteAnomaly reports whether elapsed is strictly above the acute
// threshold. It does not consult the history.
func (e *Engine) CheckAcuteAnomaly(elapsed time.Duration) bool {
	return elapsed > e.AcuteThreshold()
}

// Slope returns the least-squares slope of duration (ms) against run index,
// oldest first. Positive means runs are getting slower. Fewer than two
// samples give 0.
func (e *Engine) Slope() float64 {
	n := e.ring.Len()
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := 0; i < n; i++ {
		x := float64(i)
		y := float64(e.ring.At(i))
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	fn := float64(n)
	denominator := fn*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denominator
}

// LastRunDuration returns the newest sample, or 0 when the history is empty.
func (e *Engine) LastRunDuration() time.Duration {
	return time.Duration(e.ring.Last()) * time.Millisecond
}

// HistoryCount returns the number of samples held.
func (e *Engine) HistoryCount() int {
	return e.ring.Len()
}

// HistoryItem returns the i-th oldest sample, or 0 when out of range.
func (e *Engine) HistoryItem(i int) time.Duration {
	return time.Duration(e.ring.At(i)) * time.Millisecond
}

// History returns all samples oldest first.
func (e *Engine) History() []time.Duration {
	values := e.ring.Values()
	out := make([]time.Duration, len(values))
	for i, v := range values {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}

// SeedDemo replaces the history with a synthetic aging trend: baseline
// plus 60-79ms per run with ±20ms noise. For demonstrations only.
func (e *Engine) SeedDemo(rng *rand.Rand) {
	e.ring.Reset()
	base := e.cfg.Baseline.Milliseconds()
	for i := 0; i < e.ring.Cap(); i++ {
		v := base + int64(i)*int64(60+rng.Intn(20)) + int64(rng.Intn(41)-20)
		e.RecordRun(time.Duration(v) * time.Millisecond)
	}
	e.log.Info().Float64("slope", e.Slope()).Msg("demo history generated")
}
