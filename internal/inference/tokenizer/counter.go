package tokenizer

import (
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"
)

// Counter counts tokens for one vendor family.
type Counter interface {
	Count(text string) int
}

type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }

var loaderOnce sync.Once

// NewBPECounter returns a tiktoken counter for the named encoding. BPE ranks
// are embedded in the binary so no network fetch happens at runtime.
func NewBPECounter(encoding string) (Counter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encoding, err)
	}
	return CounterFunc(func(text string) int {
		if text == "" {
			return 0
		}
		return len(enc.Encode(text, nil, nil))
	}), nil
}

// RatioCounter approximates tokens as ceil(runes / charsPerToken), with the
// ratio given as num/den so the rounding stays exact.
func RatioCounter(num, den int) Counter {
	return CounterFunc(func(text string) int {
		n := utf8.RuneCountInString(text)
		if n == 0 {
			return 0
		}
		return (n*den + num - 1) / num
	})
}

// WordPieceCounter counts one token per punctuation or symbol rune and
// ceil(len/maxPiece) tokens per run of word runes.
func WordPieceCounter(maxPiece int) Counter {
	return CounterFunc(func(text string) int {
		var tokens, run int
		flush := func() {
			if run > 0 {
				tokens += (run + maxPiece - 1) / maxPiece
				run = 0
			}
		}
		for _, r := range text {
			switch {
			case unicode.IsSpace(r):
				flush()
			case unicode.IsPunct(r) || unicode.IsSymbol(r):
				flush()
				tokens++
			default:
				run++
			}
		}
		flush()
		return tokens
	})
}
