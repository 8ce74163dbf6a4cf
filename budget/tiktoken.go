package budget

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenEstimator counts real BPE tokens via tiktoken. Useful when
// accuracy matters more than speed; the word heuristic remains the
// default because the budget invariants are calibrated against it.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the cl100k_base encoding.
func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding: %w", err)
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(e.enc.Encode(text, nil, nil))
}
