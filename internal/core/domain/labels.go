package domain

import (
	"encoding/json"
	"strings"
)

type BlockLabel string

const (
	LabelTitle    BlockLabel = "TITLE"
	LabelMainText BlockLabel = "MAIN_TEXT"
	LabelFootnote BlockLabel = "FOOTNOTE"
	LabelHeader   BlockLabel = "HEADER"
	LabelFooter   BlockLabel = "FOOTER"
	LabelCaption  BlockLabel = "CAPTION"
	LabelUnknown  BlockLabel = "UNKNOWN"
)

var AllLabels = []BlockLabel{
	LabelTitle,
	LabelMainText,
	LabelFootnote,
	LabelHeader,
	LabelFooter,
	LabelCaption,
	LabelUnknown,
}

// ParseBlockLabel maps any unrecognized value to LabelUnknown.
func ParseBlockLabel(raw string) BlockLabel {
	candidate := BlockLabel(strings.ToUpper(strings.TrimSpace(raw)))
	for _, label := range AllLabels {
		if label == candidate {
			return label
		}
	}
	return LabelUnknown
}

func (l *BlockLabel) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = LabelUnknown
		return nil
	}
	*l = ParseBlockLabel(raw)
	return nil
}

// LabelSet is the allow-set of block labels taking part in reconstruction.
type LabelSet map[BlockLabel]struct{}

func NewLabelSet(labels ...BlockLabel) LabelSet {
	set := make(LabelSet, len(labels))
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return set
}

func DefaultLabelSet() LabelSet {
	return NewLabelSet(LabelTitle, LabelMainText)
}

// ParseLabelSet reads a comma separated list such as "TITLE,MAIN_TEXT".
// Unknown names are rejected so a typo does not silently drop content.
func ParseLabelSet(raw string) (LabelSet, error) {
	set := LabelSet{}
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToUpper(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		label := ParseBlockLabel(name)
		if label == LabelUnknown && name != string(LabelUnknown) {
			return nil, WrapError(ErrInvalidInput, "parse labels", &UnknownLabelError{Name: name})
		}
		set[label] = struct{}{}
	}
	return set, nil
}

func (s LabelSet) Contains(label BlockLabel) bool {
	_, ok := s[label]
	return ok
}

type UnknownLabelError struct {
	Name string
}

func (e *UnknownLabelError) Error() string {
	return "unknown block label " + e.Name
}
