package image

import (
	"context"
	"strings"
)

// Request is one text-to-image generation. A single Request backs every call
// of a batch and is never modified after construction.
type Request struct {
	Prompt     string     `json:"prompt"`
	Model      string     `json:"model"`
	Dimensions Dimensions `json:"dimensions"`
}

// Image is the binary payload returned by a successful generation.
type Image struct {
	Data        []byte
	ContentType string
}

// Ext returns the file extension matching the image content type.
func (i Image) Ext() string {
	switch strings.TrimSpace(strings.SplitN(i.ContentType, ";", 2)[0]) {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}

type Generator interface {
	Generate(ctx context.Context, req Request, key string) (Image, error)
}
