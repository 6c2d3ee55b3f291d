package embeddings

import (
	"context"
	"time"
)

// Fake is a deterministic Provider for tests. Vectors are derived from the
// payload checksum so equal texts embed equally and different texts diverge.
type Fake struct {
	Dimensions int
	Err        error
	Calls      int
}

// NewFake creates a fake provider with the given dimension.
func NewFake(dimensions int) *Fake {
	return &Fake{Dimensions: dimensions}
}

func (f *Fake) Generate(ctx context.Context, payload Payload) (*Result, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	sum := PayloadChecksum(payload.Text)
	vector := make([]float32, f.Dimensions)
	for i := range vector {
		vector[i] = float32(sum[i%len(sum)]) / 255
	}
	return &Result{
		Vector:      vector,
		Dimensions:  f.Dimensions,
		Provider:    "fake",
		Model:       "fake",
		GeneratedAt: time.Now().UTC(),
	}, nil
}
