package reconstruct

import "github.com/kirillkom/docuclean/internal/core/domain"

// BlockFilter decides whether a block takes part in reconstruction.
type BlockFilter func(domain.TextBlock) bool

// LabelFilter is a plain membership test on the allow-set. No label is
// implicitly included; an empty set rejects everything.
func LabelFilter(allowed domain.LabelSet) BlockFilter {
	return func(block domain.TextBlock) bool {
		return allowed.Contains(block.Label)
	}
}
