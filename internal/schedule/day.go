package schedule

import "fmt"

// BlockStatus marks a block as open or taken.
type BlockStatus string

const (
	StatusFree BlockStatus = "free"
	StatusBusy BlockStatus = "busy"
)

// Block is one slot of a day's grid.
type Block struct {
	Start  TimeOfDay   `json:"start"`
	End    TimeOfDay   `json:"end"`
	Status BlockStatus `json:"status"`
}

// Day divides 24 hours into equal blocks. The blocks always partition
// the day: block 0 starts at midnight, each block ends one second
// before the next begins, and the last block ends at 23:59:59. A fresh
// day is entirely free.
type Day struct {
	interval Interval
	blocks   []Block
}

// NewDay returns a day on the given grid with every block free.
func NewDay(iv Interval) *Day {
	if iv.minutes == 0 {
		iv = DefaultInterval
	}
	blocks := make([]Block, iv.BlocksPerDay())
	for i := range blocks {
		start, end, _ := iv.Window(i)
		blocks[i] = Block{Start: start, End: end, Status: StatusFree}
	}
	return &Day{interval: iv, blocks: blocks}
}

// Interval returns the grid the day is built on.
func (d *Day) Interval() Interval { return d.interval }

// Len is the number of blocks in the day.
func (d *Day) Len() int { return len(d.blocks) }

// Block returns the block at index.
func (d *Day) Block(index int) (Block, error) {
	if index < 0 || index >= len(d.blocks) {
		return Block{}, fmt.Errorf("%w: index %d with %d blocks per day", ErrIndexOutOfRange, index, len(d.blocks))
	}
	return d.blocks[index], nil
}

// Blocks returns a copy of the grid; mutating it does not touch the day.
func (d *Day) Blocks() []Block {
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// StatusAt reports the status of the block containing t.
func (d *Day) StatusAt(t TimeOfDay) (BlockStatus, error) {
	idx := d.interval.IndexOf(t)
	if idx < 0 || idx >= len(d.blocks) {
		return "", fmt.Errorf("%w: %s", ErrInvalidTime, t)
	}
	return d.blocks[idx].Status, nil
}

// SetRange marks every block in the half-open range [from, to). A block
// is included when its start lies inside the range, so the block
// containing to is excluded. An empty range is a no-op.
func (d *Day) SetRange(from, to TimeOfDay, status BlockStatus) error {
	if to.Before(from) {
		return fmt.Errorf("%w: %s after %s", ErrInvalidRange, from, to)
	}
	return d.SetIndexRange(d.interval.IndexOf(from), d.interval.IndexOf(to), status)
}

// SetIndexRange marks the blocks [from, to) by grid index. to may equal
// the block count to cover through the end of the day.
func (d *Day) SetIndexRange(from, to int, status BlockStatus) error {
	if from < 0 || from > len(d.blocks) {
		return fmt.Errorf("%w: index %d with %d blocks per day", ErrIndexOutOfRange, from, len(d.blocks))
	}
	if to < from || to > len(d.blocks) {
		return fmt.Errorf("%w: index %d with %d blocks per day", ErrIndexOutOfRange, to, len(d.blocks))
	}
	for i := from; i < to; i++ {
		d.blocks[i].Status = status
	}
	return nil
}

// BusyCount returns the number of busy blocks.
func (d *Day) BusyCount() int {
	n := 0
	for _, b := range d.blocks {
		if b.Status == StatusBusy {
			n++
		}
	}
	return n
}

// FreeCount returns the number of free blocks.
func (d *Day) FreeCount() int { return len(d.blocks) - d.BusyCount() }

// Clone returns a deep copy sharing nothing with d.
func (d *Day) Clone() *Day {
	return &Day{interval: d.interval, blocks: d.Blocks()}
}
