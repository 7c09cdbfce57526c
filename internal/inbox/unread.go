package inbox

import "sync"

// UnreadCounter holds per-room unread counts and their aggregate total.
// Recompute is the authoritative path and runs once per aggregation
// pass; ApplyLocalReset is the optimistic patch used to mask
// read-marking latency and is always superseded by the next Recompute.
type UnreadCounter struct {
	mu      sync.Mutex
	perRoom map[int64]int
	total   int
	updates chan int
}

func NewUnreadCounter() *UnreadCounter {
	return &UnreadCounter{
		perRoom: make(map[int64]int),
		updates: make(chan int, 1),
	}
}

// Recompute replaces the whole state from a fresh aggregation pass.
// After it returns, total == sum(perRoom).
func (c *UnreadCounter) Recompute(counts map[int64]int) {
	c.mu.Lock()
	perRoom := make(map[int64]int, len(counts))
	total := 0
	for roomID, n := range counts {
		if n < 0 {
			n = 0
		}
		perRoom[roomID] = n
		total += n
	}
	c.perRoom = perRoom
	c.total = total
	c.mu.Unlock()

	c.publish(total)
}

// ApplyLocalReset zeroes one room's count and shrinks the total by the
// room's prior count, clamped at zero. The next Recompute wins.
func (c *UnreadCounter) ApplyLocalReset(roomID int64) {
	c.mu.Lock()
	prior := c.perRoom[roomID]
	c.perRoom[roomID] = 0
	c.total -= prior
	if c.total < 0 {
		c.total = 0
	}
	total := c.total
	c.mu.Unlock()

	c.publish(total)
}

func (c *UnreadCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

func (c *UnreadCounter) Count(roomID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perRoom[roomID]
}

// Updates publishes the aggregate total to a single badge consumer.
// The channel is conflated: a slow reader only ever sees the latest
// value, never a backlog.
func (c *UnreadCounter) Updates() <-chan int {
	return c.updates
}

func (c *UnreadCounter) publish(total int) {
	for {
		select {
		case c.updates <- total:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}
