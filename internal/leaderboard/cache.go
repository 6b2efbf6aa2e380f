package leaderboard

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/cache"
)

// BoardCache keeps computed boards for one TTL window. All entries are
// dropped together when the window rolls over.
type BoardCache struct {
	ttl    time.Duration
	mu     sync.Mutex
	window int64
	boards *cache.Cache[*Board]
}

// NewBoardCache creates a cache whose entries live at most ttl.
func NewBoardCache(ttl time.Duration) *BoardCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &BoardCache{ttl: ttl, boards: cache.New[*Board]()}
}

func boardKey(period Period, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%d", period, limit)
}

// GetOrCompute returns the board for (period, limit) valid at now, running
// compute once per window.
func (bc *BoardCache) GetOrCompute(now time.Time, period Period, limit int, compute func() (*Board, error)) (*Board, bool, error) {
	bc.roll(now)
	return bc.boards.GetOrCompute(boardKey(period, limit), compute)
}

func (bc *BoardCache) roll(now time.Time) {
	w := now.UnixNano() / int64(bc.ttl)

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if w != bc.window {
		if n := bc.boards.Reset(); n > 0 {
			slog.Debug("Leaderboard cache expired", "boards", n)
		}
		bc.window = w
	}
}

// InvalidateAll drops every cached board.
func (bc *BoardCache) InvalidateAll() int {
	n := bc.boards.Reset()
	slog.Debug("Leaderboard cache invalidated", "boards", n)
	return n
}

// Stats returns cache activity.
func (bc *BoardCache) Stats() cache.Stats {
	return bc.boards.Stats()
}
