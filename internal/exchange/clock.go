package exchange

import (
	"sync/atomic"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/roach88/pointex/internal/model"
)

// Clock reports the external block height. Heights never decrease and only
// advance between engine calls.
type Clock interface {
	BlockHeight() idx.Block
}

// EraClock derives era indices from block heights.
type EraClock struct {
	clock     Clock
	eraLength uint64
}

// NewEraClock wraps clock with a fixed era length in blocks.
// Panics if eraLength is zero.
func NewEraClock(clock Clock, eraLength uint64) EraClock {
	if eraLength == 0 {
		panic("exchange: era length must be positive")
	}
	return EraClock{clock: clock, eraLength: eraLength}
}

// BlockHeight returns the current block height.
func (c EraClock) BlockHeight() idx.Block {
	return c.clock.BlockHeight()
}

// CurrentEra returns blockHeight / eraLength.
func (c EraClock) CurrentEra() model.Era {
	return c.EraOf(c.clock.BlockHeight())
}

// EraOf returns the era containing height.
func (c EraClock) EraOf(height idx.Block) model.Era {
	return model.Era(uint64(height) / c.eraLength)
}

// EraStart returns the first block of era.
func (c EraClock) EraStart(era model.Era) idx.Block {
	return idx.Block(uint64(era) * c.eraLength)
}

// EraLength returns the number of blocks per era.
func (c EraClock) EraLength() uint64 {
	return c.eraLength
}

// ManualClock is a Clock whose height is set explicitly. The CLI loads the
// persisted chain height into one; tests and the scenario harness drive it
// step by step.
//
// Thread-safety: ManualClock is safe for concurrent use.
type ManualClock struct {
	height atomic.Uint64
}

// NewManualClock creates a clock at the given height.
func NewManualClock(height idx.Block) *ManualClock {
	c := &ManualClock{}
	c.height.Store(uint64(height))
	return c
}

// BlockHeight implements Clock.
func (c *ManualClock) BlockHeight() idx.Block {
	return idx.Block(c.height.Load())
}

// Set moves the clock to height. Moving backwards is ignored so the clock
// stays monotonic.
func (c *ManualClock) Set(height idx.Block) {
	for {
		cur := c.height.Load()
		if uint64(height) <= cur {
			return
		}
		if c.height.CompareAndSwap(cur, uint64(height)) {
			return
		}
	}
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *ManualClock) Advance(n uint64) idx.Block {
	return idx.Block(c.height.Add(n))
}
