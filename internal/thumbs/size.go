package thumbs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSize is returned for malformed or non-positive sizes.
var ErrInvalidSize = errors.New("invalid thumbnail size")

// Size is a bounding box a thumbnail is rendered within.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewSize validates that both dimensions are positive.
func NewSize(width, height int) (Size, error) {
	if width <= 0 || height <= 0 {
		return Size{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return Size{Width: width, Height: height}, nil
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseSize parses "WxH". A single number means a square box.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Size{}, fmt.Errorf("%w: empty", ErrInvalidSize)
	}
	w, h, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		h = w
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return Size{}, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return NewSize(width, height)
}

// ParseSizes parses a comma separated list of sizes, keeping their order.
func ParseSizes(s string) ([]Size, error) {
	var sizes []Size
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		size, err := ParseSize(part)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}
