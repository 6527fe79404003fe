package video

import (
	"context"
	"image"
)

// Source is an open, decodable video. Next returns io.EOF once the stream is
// exhausted.
type Source interface {
	FrameRate() float64
	Next() (image.Image, error)
	Close() error
}

type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
}
