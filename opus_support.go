//go:build opus

package main

import (
	"log"
	"math"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/cwsl/rnnoise-go/internal/rnndsp"
)

// OpusEncoder wraps libopus for optional compressed WebSocket egress. A
// disabled/failed encoder falls back to PCM.
type OpusEncoder struct {
	encoder *opus.Encoder
	enabled bool
}

// NewOpusEncoder builds a mono 48kHz encoder if cfg.Enabled, falling
// back to PCM (enabled=false) if initialization fails.
func NewOpusEncoder(cfg OpusConfig) *OpusEncoder {
	w := &OpusEncoder{}
	if !cfg.Enabled {
		return w
	}

	enc, err := opus.NewEncoder(48000, 1, opus.AppVoIP)
	if err != nil {
		log.Printf("opus: requested but failed to initialize: %v; falling back to PCM", err)
		return w
	}
	if cfg.Bitrate > 0 {
		if err := enc.SetBitrate(cfg.Bitrate); err != nil {
			log.Printf("opus: set bitrate: %v", err)
		}
	}
	if cfg.Complexity > 0 {
		if err := enc.SetComplexity(cfg.Complexity); err != nil {
			log.Printf("opus: set complexity: %v", err)
		}
	}
	w.encoder = enc
	w.enabled = true
	log.Printf("opus: encoder initialized (bitrate=%d, complexity=%d)", cfg.Bitrate, cfg.Complexity)
	return w
}

func (w *OpusEncoder) Enabled() bool { return w.enabled }

// Encode encodes one denoised Frame of float32 PCM to an Opus packet.
func (w *OpusEncoder) Encode(frame *[rnndsp.Frame]float32) ([]byte, error) {
	pcm := make([]int16, rnndsp.Frame)
	for i, v := range frame {
		s := v * 32767.0
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		pcm[i] = int16(math.Round(float64(s)))
	}
	out := make([]byte, 4000)
	n, err := w.encoder.Encode(pcm, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
