// Package tokens estimates prompt token footprints so sessions can reject
// oversized turns before any network call.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with tiktoken. The count is an estimate: the
// backend's own tokenizer is authoritative, but cl100k/o200k encodings are
// close enough for a pre-send budget check.
type Estimator struct {
	encoding tokenizer.Encoding

	mu    sync.Mutex
	codec tokenizer.Codec
}

// NewEstimator creates an estimator on the o200k encoding used by current
// models.
func NewEstimator() *Estimator {
	return &Estimator{encoding: tokenizer.O200kBase}
}

// NewEstimatorWithEncoding creates an estimator for a specific encoding.
func NewEstimatorWithEncoding(encoding tokenizer.Encoding) *Estimator {
	return &Estimator{encoding: encoding}
}

// Estimate returns the token count for a text.
func (e *Estimator) Estimate(text string) (int, error) {
	codec, err := e.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

func (e *Estimator) getCodec() (tokenizer.Codec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codec != nil {
		return e.codec, nil
	}
	codec, err := tokenizer.Get(e.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	e.codec = codec
	return codec, nil
}
