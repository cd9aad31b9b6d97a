package maintenance

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, store Store) *Engine {
	t.Helper()
	e, err := NewEngine(store, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func TestNewEngineEmptyStore(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())

	if e.HistoryCount() != 0 {
		t.Errorf("HistoryCount: got %d, want 0", e.HistoryCount())
	}
	if e.LastRunDuration() != 0 {
		t.Errorf("LastRunDuration: got %v, want 0", e.LastRunDuration())
	}
	if e.Slope() != 0 {
		t.Errorf("Slope: got %v, want 0", e.Slope())
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero capacity", Config{Capacity: 0, Baseline: time.Second, AcuteRatio: 1.3}},
		{"zero baseline", Config{Capacity: 10, Baseline: 0, AcuteRatio: 1.3}},
		{"zero ratio", Config{Capacity: 10, Baseline: time.Second, AcuteRatio: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(NewMemoryStore(), tt.cfg, zerolog.Nop()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRecordRunTwelveKeepsLastTen(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	for i := int64(1); i <= 12; i++ {
		e.RecordRun(ms(8000 + i))
	}

	if e.HistoryCount() != 10 {
		t.Fatalf("HistoryCount: got %d, want 10", e.HistoryCount())
	}
	if e.HistoryItem(0) != ms(8003) {
		t.Errorf("HistoryItem(0): got %v, want 8.003s", e.HistoryItem(0))
	}
	if e.HistoryItem(9) != ms(8012) {
		t.Errorf("HistoryItem(9): got %v, want 8.012s", e.HistoryItem(9))
	}
	if e.LastRunDuration() != ms(8012) {
		t.Errorf("LastRunDuration: got %v, want 8.012s", e.LastRunDuration())
	}
	hist := e.History()
	for i := 1; i < len(hist); i++ {
		if hist[i] <= hist[i-1] {
			t.Fatalf("history not chronological at %d: %v", i, hist)
		}
	}
}

func TestCheckAcuteAnomalyStrictGreater(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())

	tests := []struct {
		elapsed time.Duration
		want    bool
	}{
		{ms(8000), false},
		{ms(10399), false},
		{ms(10400), false},
		{ms(10401), true},
		{ms(20000), true},
	}

	for _, tt := range tests {
		if got := e.CheckAcuteAnomaly(tt.elapsed); got != tt.want {
			t.Errorf("CheckAcuteAnomaly(%v): got %v, want %v", tt.elapsed, got, tt.want)
		}
	}
}

func TestCheckAcuteAnomalyIgnoresHistory(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	for i := 0; i < 10; i++ {
		e.RecordRun(ms(20000))
	}

	if e.CheckAcuteAnomaly(ms(10400)) {
		t.Error("threshold must depend on the configured baseline only")
	}
}

func TestSlopeIncreasing(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	for i := int64(0); i < 10; i++ {
		e.RecordRun(ms(8000 + 80*i))
	}

	if got := e.Slope(); math.Abs(got-80.0) > 1e-9 {
		t.Errorf("Slope: got %v, want 80", got)
	}
}

func TestSlopeConstant(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	for i := 0; i < 10; i++ {
		e.RecordRun(ms(8000))
	}

	if got := e.Slope(); got != 0 {
		t.Errorf("Slope: got %v, want 0", got)
	}
}

func TestSlopeDecreasing(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	for i := int64(0); i < 5; i++ {
		e.RecordRun(ms(9000 - 50*i))
	}

	if got := e.Slope(); math.Abs(got+50.0) > 1e-9 {
		t.Errorf("Slope: got %v, want -50", got)
	}
}

func TestSlopeSingleSample(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	e.RecordRun(ms(8000))

	if got := e.Slope(); got != 0 {
		t.Errorf("Slope: got %v, want 0", got)
	}
}

func TestSlopeUsesChronologicalOrderAfterWrap(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	// Old slow runs get evicted; the survivors rise by 10ms per run.
	for i := 0; i < 5; i++ {
		e.RecordRun(ms(50000))
	}
	for i := int64(0); i < 10; i++ {
		e.RecordRun(ms(8000 + 10*i))
	}

	if got := e.Slope(); math.Abs(got-10.0) > 1e-9 {
		t.Errorf("Slope: got %v, want 10", got)
	}
}

func TestRecordRunWritesThrough(t *testing.T) {
	store := NewMemoryStore()
	e := newTestEngine(t, store)

	e.RecordRun(ms(8100))

	if store.Batches != 1 || store.Puts != 0 {
		t.Errorf("writes: got %d batches and %d puts, want a single batch", store.Batches, store.Puts)
	}
	b, err := store.Get(KeyCount)
	if err != nil {
		t.Fatalf("Get count: %v", err)
	}
	if n, _ := decodeInt(b); n != 1 {
		t.Errorf("persisted count: got %d, want 1", n)
	}
}

func TestHistorySurvivesRestart(t *testing.T) {
	store := NewMemoryStore()
	first := newTestEngine(t, store)
	for i := int64(1); i <= 13; i++ {
		first.RecordRun(ms(8000 + 10*i))
	}

	second := newTestEngine(t, store)

	if !reflect.DeepEqual(second.History(), first.History()) {
		t.Errorf("history after restart: got %v, want %v", second.History(), first.History())
	}
	second.RecordRun(ms(9999))
	if second.HistoryItem(0) != ms(8050) {
		t.Errorf("oldest after one more run: got %v, want 8.05s", second.HistoryItem(0))
	}
}

func TestPersistFailureKeepsMemory(t *testing.T) {
	store := NewMemoryStore()
	store.PutError = errors.New("flash worn out")
	e := newTestEngine(t, store)

	e.RecordRun(ms(8100))

	if e.HistoryCount() != 1 {
		t.Errorf("HistoryCount: got %d, want 1", e.HistoryCount())
	}
	if e.LastRunDuration() != ms(8100) {
		t.Errorf("LastRunDuration: got %v, want 8.1s", e.LastRunDuration())
	}
}

func TestFailedWriteKeepsPersistedHistoryConsistent(t *testing.T) {
	tests := []struct {
		name string
		runs int
	}{
		{"partial ring", 5},
		{"full ring", 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			e := newTestEngine(t, store)
			for i := 0; i < tt.runs; i++ {
				e.RecordRun(ms(8000 + int64(i)))
			}
			saved := e.History()

			// Power is lost while the next run is written.
			store.PutError = errors.New("power cut")
			e.RecordRun(ms(9999))
			store.PutError = nil

			reloaded := newTestEngine(t, store)
			if got := reloaded.History(); !reflect.DeepEqual(got, saved) {
				t.Errorf("history after reload: got %v, want %v", got, saved)
			}
		})
	}
}

func TestCorruptPersistedStateDiscarded(t *testing.T) {
	tests := []struct {
		name   string
		cursor []byte
		count  []byte
		hist   []byte
	}{
		{"short cursor", []byte{1, 0}, encodeInt(1), encodeSamples(make([]int64, 10))},
		{"count over capacity", encodeInt(0), encodeInt(11), encodeSamples(make([]int64, 10))},
		{"negative cursor", encodeInt(-1), encodeInt(10), encodeSamples(make([]int64, 10))},
		{"cursor mismatch", encodeInt(5), encodeInt(3), encodeSamples(make([]int64, 10))},
		{"short history", encodeInt(2), encodeInt(2), encodeSamples(make([]int64, 4))},
		{"missing history", encodeInt(2), encodeInt(2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			store.Put(KeyCursor, tt.cursor)
			store.Put(KeyCount, tt.count)
			if tt.hist != nil {
				store.Put(KeyHistory, tt.hist)
			}

			e := newTestEngine(t, store)
			if e.HistoryCount() != 0 {
				t.Errorf("HistoryCount: got %d, want 0", e.HistoryCount())
			}
		})
	}
}

func TestSeedDemo(t *testing.T) {
	e := newTestEngine(t, NewMemoryStore())
	e.RecordRun(ms(1))

	e.SeedDemo(rand.New(rand.NewSource(1)))

	if e.HistoryCount() != 10 {
		t.Fatalf("HistoryCount: got %d, want 10", e.HistoryCount())
	}
	if e.HistoryItem(0) < ms(7980) || e.HistoryItem(0) > ms(8020) {
		t.Errorf("first demo sample: got %v, want 8s ±20ms", e.HistoryItem(0))
	}
	if s := e.Slope(); s < 40 || s > 100 {
		t.Errorf("Slope: got %v, want an aging trend around 60-80", s)
	}
}
