package game

import (
	"context"
	"sync"
)

// QuestionSource looks up the ordered questions configured for a game code.
type QuestionSource interface {
	Questions(ctx context.Context, code string) ([]Question, error)
}

// ResultSink persists finalized results, replacing any earlier result for
// the same game code.
type ResultSink interface {
	SaveResult(ctx context.Context, result Result) error
	LoadResult(ctx context.Context, code string) (*Result, bool, error)
}

// StatsRecorder increments durable per-account totals.
type StatsRecorder interface {
	RecordGame(ctx context.Context, accountID string, stat GameStat) error
}

// MemoryQuestions is a QuestionSource backed by a map, used when no
// database is configured.
type MemoryQuestions struct {
	mu      sync.RWMutex
	quizzes map[string][]Question
}

func NewMemoryQuestions() *MemoryQuestions {
	return &MemoryQuestions{quizzes: make(map[string][]Question)}
}

func (m *MemoryQuestions) Put(code string, questions []Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quizzes[code] = append([]Question(nil), questions...)
}

func (m *MemoryQuestions) Questions(_ context.Context, code string) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	questions, ok := m.quizzes[code]
	if !ok {
		return nil, nil
	}
	return append([]Question(nil), questions...), nil
}

// MemoryResults implements ResultSink and StatsRecorder in memory.
type MemoryResults struct {
	mu      sync.Mutex
	results map[string]Result
	stats   map[string]AccountStats
}

type AccountStats struct {
	GamesPlayed int
	TotalScore  int
	Correct     int
	Wrong       int
}

func NewMemoryResults() *MemoryResults {
	return &MemoryResults{
		results: make(map[string]Result),
		stats:   make(map[string]AccountStats),
	}
}

func (m *MemoryResults) SaveResult(_ context.Context, result Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.GameCode] = result
	return nil
}

func (m *MemoryResults) LoadResult(_ context.Context, code string) (*Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.results[code]
	if !ok {
		return nil, false, nil
	}
	return &result, true, nil
}

func (m *MemoryResults) RecordGame(_ context.Context, accountID string, stat GameStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.stats[accountID]
	current.GamesPlayed++
	current.TotalScore += stat.Score
	current.Correct += stat.Correct
	current.Wrong += stat.Wrong
	m.stats[accountID] = current
	return nil
}

func (m *MemoryResults) Stats(accountID string) AccountStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[accountID]
}
