package bridgewire

import (
	"fmt"
	"sync/atomic"
	"time"
)

// IDGenerator mints correlation ids. Ids combine a timestamp with a
// process-local monotonic counter so they stay unique even if a restarted
// peer begins counting from zero again.
type IDGenerator struct {
	counter atomic.Uint64
}

// Next returns a fresh correlation id. Safe for concurrent use.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("req_%d_%d", time.Now().UnixMilli(), g.counter.Add(1))
}
