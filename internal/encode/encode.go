// Package encode defines the external encoder contract and ships one real
// adapter wrapping ffmpeg. Workers consume the encoder as an opaque "encode
// file, report progress" operation.
package encode

import (
	"context"

	"github.com/meetscribe/api/internal/model"
)

// Progress receives the encoder's completion estimate in percent [0, 100].
type Progress func(percent float64)

// Encoder transcodes a local file into the requested format.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputPath string, profile model.QualityProfile, onProgress Progress) error
}
