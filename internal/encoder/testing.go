package encoder

import (
	"context"
	"strings"
	"sync/atomic"
)

// TestTokenizer is a whitespace tokenizer over a fixed vocabulary. Id 0 is
// [UNK], 1 is [CLS], 2 is [SEP]; words get ids from 3 in the order given.
type TestTokenizer struct {
	vocab map[string]int
}

// NewTestTokenizer builds a TestTokenizer knowing words.
func NewTestTokenizer(words ...string) *TestTokenizer {
	vocab := map[string]int{"[UNK]": 0, "[CLS]": 1, "[SEP]": 2}
	for _, w := range words {
		w = strings.ToLower(w)
		if _, ok := vocab[w]; !ok {
			vocab[w] = len(vocab)
		}
	}
	return &TestTokenizer{vocab: vocab}
}

// VocabSize returns the number of known ids.
func (t *TestTokenizer) VocabSize() int { return len(t.vocab) }

// ID returns the id of word, or the [UNK] id.
func (t *TestTokenizer) ID(word string) int {
	return t.vocab[strings.ToLower(word)]
}

// Tokenize splits text on whitespace and maps each word to its id.
func (t *TestTokenizer) Tokenize(text string) ([]int, error) {
	fields := strings.Fields(text)
	ids := make([]int, len(fields))
	for i, f := range fields {
		ids[i] = t.ID(f)
	}
	return ids, nil
}

// Special returns the fixed [CLS] and [SEP] ids.
func (t *TestTokenizer) Special() SpecialTokens {
	return SpecialTokens{CLS: 1, SEP: 2}
}

// TestModel is a deterministic Model whose hidden state at each position
// is the one-hot vector of the token id there. The [UNK] dimension is
// always zero, so unknown words contribute nothing.
type TestModel struct {
	Hidden  int
	MaxLen  int
	Fail    func(in Input) error // optional per-call failure
	calls   atomic.Int64
	lastLen atomic.Int64
}

// NewTestModel returns a TestModel of width hidden.
func NewTestModel(hidden, maxLength int) *TestModel {
	return &TestModel{Hidden: hidden, MaxLen: maxLength}
}

// Forward returns one-hot rows for in.IDs.
func (m *TestModel) Forward(ctx context.Context, in Input) (HiddenStates, error) {
	if err := ctx.Err(); err != nil {
		return HiddenStates{}, err
	}
	if err := validateInput(in, m.MaxLen); err != nil {
		return HiddenStates{}, err
	}
	if m.Fail != nil {
		if err := m.Fail(in); err != nil {
			return HiddenStates{}, err
		}
	}
	m.calls.Add(1)
	m.lastLen.Store(int64(in.Len()))

	data := make([]float32, in.Len()*m.Hidden)
	for i, id := range in.IDs {
		if id > 0 && int(id) < m.Hidden {
			data[i*m.Hidden+int(id)] = 1
		}
	}
	return HiddenStates{Data: data, SeqLen: in.Len(), Hidden: m.Hidden}, nil
}

// MaxLength returns the configured limit.
func (m *TestModel) MaxLength() int { return m.MaxLen }

// HiddenSize returns the one-hot width.
func (m *TestModel) HiddenSize() int { return m.Hidden }

// Calls returns the number of successful forward passes.
func (m *TestModel) Calls() int { return int(m.calls.Load()) }

// LastLength returns the length of the last successful input.
func (m *TestModel) LastLength() int { return int(m.lastLen.Load()) }
