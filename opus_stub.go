//go:build !opus

package main

import (
	"log"

	"github.com/cwsl/rnnoise-go/internal/rnndsp"
)

// OpusEncoder is the default-build stub: libopus is a cgo dependency, so
// the daemon falls back to PCM egress unless built with `-tags opus`.
type OpusEncoder struct{}

func NewOpusEncoder(cfg OpusConfig) *OpusEncoder {
	if cfg.Enabled {
		log.Println("opus: requested but not compiled in; rebuild with -tags opus. Falling back to PCM")
	}
	return &OpusEncoder{}
}

func (w *OpusEncoder) Enabled() bool { return false }

func (w *OpusEncoder) Encode(frame *[rnndsp.Frame]float32) ([]byte, error) {
	return nil, nil
}
