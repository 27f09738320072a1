package image

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidDimension = errors.New("invalid dimension")

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ParseDimensions converts an aspect token such as "1024x768" into its width
// and height. Both parts must be positive integers.
func ParseDimensions(token string) (Dimensions, error) {
	parts := strings.Split(strings.TrimSpace(token), "x")
	if len(parts) != 2 {
		return Dimensions{}, fmt.Errorf("%w: %q is not WxH", ErrInvalidDimension, token)
	}

	width, err := strconv.Atoi(parts[0])
	if err != nil || width <= 0 {
		return Dimensions{}, fmt.Errorf("%w: width %q in %q", ErrInvalidDimension, parts[0], token)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil || height <= 0 {
		return Dimensions{}, fmt.Errorf("%w: height %q in %q", ErrInvalidDimension, parts[1], token)
	}
	return Dimensions{Width: width, Height: height}, nil
}
