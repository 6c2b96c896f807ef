package buffer

import (
	"fmt"
	"math"
)

type Size int

// RawSample is one sensor read. NaN in any field means the read failed.
type RawSample struct {
	Humidity    float64
	Temperature float64
	HeatIndex   float64
}

func NaNSample() RawSample {
	return RawSample{Humidity: math.NaN(), Temperature: math.NaN(), HeatIndex: math.NaN()}
}

// Valid is true when both humidity and temperature were read. The heat
// index is derived from those two and is not checked here.
func (r RawSample) Valid() bool {
	return !math.IsNaN(r.Humidity) && !math.IsNaN(r.Temperature)
}

func (r RawSample) String() string {
	return fmt.Sprintf("RH: %.0f %%, T: %.2f C, HIC: %.2f C", r.Humidity, r.Temperature, r.HeatIndex)
}

// Batch holds exactly size samples for one submission cycle. It is owned by
// the caller and is not safe for concurrent use.
type Batch struct {
	size int
	data []RawSample
}

func NewBatch(size int) *Batch {
	if size < 1 {
		size = 1
	}
	b := Batch{
		size: size,
		data: make([]RawSample, size),
	}
	b.Reset()
	return &b
}

// Set writes slot pos, an out of range position is an error.
func (b *Batch) Set(pos int, s RawSample) error {
	if pos < 0 || pos >= b.size {
		return fmt.Errorf("slot %d out of range [0,%d)", pos, b.size)
	}
	b.data[pos] = s
	return nil
}

// Reset marks every slot as a failed read, so slots that are never
// collected cannot leak the previous cycle's values.
func (b *Batch) Reset() {
	for i := range b.data {
		b.data[i] = NaNSample()
	}
}

func (b *Batch) GetSize() int {
	return b.size
}

// GetRawData returns a copy of the slots.
func (b *Batch) GetRawData() ([]RawSample, Size) {
	cp := make([]RawSample, b.size)
	copy(cp, b.data)
	return cp, Size(b.size)
}

func (b *Batch) ValidCount() int {
	n := 0
	for _, s := range b.data {
		if s.Valid() {
			n++
		}
	}
	return n
}
