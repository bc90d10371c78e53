package similarity

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/bertrank/internal/encoder"
)

// Segment ids. The query span, with [CLS] and the first [SEP], is segment
// 1; the window and its trailing [SEP] are segment 0.
const (
	querySegment = 1
	docSegment   = 0
)

// specialTokenCount is the number of delimiters in a pair input.
const specialTokenCount = 3

// PairEncoder turns one (query, window) pair into a query vector and a
// document vector with a single forward pass.
type PairEncoder struct {
	model   encoder.Model
	special encoder.SpecialTokens
}

// NewPairEncoder creates a PairEncoder over a shared read-only model.
func NewPairEncoder(model encoder.Model, special encoder.SpecialTokens) *PairEncoder {
	return &PairEncoder{model: model, special: special}
}

// MaxLength returns the encoder input limit, delimiters included.
func (p *PairEncoder) MaxLength() int { return p.model.MaxLength() }

// Budget returns the largest window that fits beside a query of queryLen
// tokens. It is zero or negative when the query alone fills the input.
func (p *PairEncoder) Budget(queryLen int) int {
	return p.model.MaxLength() - queryLen - specialTokenCount
}

// Embed encodes [CLS] query [SEP] chunk [SEP] and returns the sum of the
// hidden states over the query span and over the chunk span.
func (p *PairEncoder) Embed(ctx context.Context, query, chunk []int) (q, d []float64, err error) {
	if len(query) == 0 || len(chunk) == 0 {
		return nil, nil, ErrEmptyText
	}
	total := len(query) + len(chunk) + specialTokenCount
	if total > p.model.MaxLength() {
		return nil, nil, fmt.Errorf("%w: %d tokens, max %d", ErrBudgetExceeded, total, p.model.MaxLength())
	}

	in := encoder.Input{
		IDs:     make([]int64, 0, total),
		TypeIDs: make([]int64, 0, total),
	}
	appendTok := func(id int, segment int64) {
		in.IDs = append(in.IDs, int64(id))
		in.TypeIDs = append(in.TypeIDs, segment)
	}

	appendTok(p.special.CLS, querySegment)
	for _, id := range query {
		appendTok(id, querySegment)
	}
	appendTok(p.special.SEP, querySegment)
	for _, id := range chunk {
		appendTok(id, docSegment)
	}
	appendTok(p.special.SEP, docSegment)

	hs, err := p.model.Forward(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	if hs.SeqLen != total || hs.Hidden <= 0 || len(hs.Data) != total*hs.Hidden {
		return nil, nil, fmt.Errorf("%w: unexpected output shape [%d x %d] for %d tokens",
			encoder.ErrInference, hs.SeqLen, hs.Hidden, total)
	}

	qStart := 1
	dStart := len(query) + 2
	q = sumRows(hs, qStart, qStart+len(query))
	d = sumRows(hs, dStart, dStart+len(chunk))
	return q, d, nil
}

// sumRows adds hidden state rows [from, to) in float64.
func sumRows(hs encoder.HiddenStates, from, to int) []float64 {
	out := make([]float64, hs.Hidden)
	for i := from; i < to; i++ {
		for j, v := range hs.Row(i) {
			out[j] += float64(v)
		}
	}
	return out
}
