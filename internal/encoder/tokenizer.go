package encoder

import (
	"fmt"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// WordPieceTokenizer tokenizes text with a HuggingFace tokenizer.json.
// Truncation and padding from the file are disabled; callers budget
// sequence length themselves.
type WordPieceTokenizer struct {
	mu      sync.Mutex
	tk      *tokenizer.Tokenizer
	special SpecialTokens
}

// NewWordPieceTokenizer loads path and resolves the ids of clsToken and
// sepToken.
func NewWordPieceTokenizer(path, clsToken, sepToken string) (*WordPieceTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", path, err)
	}
	tk.WithTruncation(nil)
	tk.WithPadding(nil)

	cls, ok := tk.TokenToId(clsToken)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, clsToken)
	}
	sep, ok := tk.TokenToId(sepToken)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToken, sepToken)
	}

	return &WordPieceTokenizer{
		tk:      tk,
		special: SpecialTokens{CLS: cls, SEP: sep},
	}, nil
}

// Tokenize returns the WordPiece ids of text. Empty text yields no ids.
func (w *WordPieceTokenizer) Tokenize(text string) ([]int, error) {
	if text == "" {
		return nil, nil
	}

	w.mu.Lock()
	en, err := w.tk.EncodeSingle(text, false)
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}

	ids := make([]int, len(en.Ids))
	copy(ids, en.Ids)
	return ids, nil
}

// Special returns the [CLS] and [SEP] ids.
func (w *WordPieceTokenizer) Special() SpecialTokens {
	return w.special
}
