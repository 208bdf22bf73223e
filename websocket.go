package main

import (
	"encoding/binary"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/cwsl/rnnoise-go/internal/rnndsp"
)

// Wire framing for the audio WebSocket: each message is one 480-sample
// (10ms @ 48kHz) mono frame of little-endian float32 PCM, optionally
// zstd-compressed or Opus-encoded.
const (
	wsFrameBytes = rnndsp.Frame * 4 // float32 samples
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketHandler serves the ingest/egress endpoint: a client streams
// raw input frames in, and receives denoised frames (plus a VAD
// probability sidecar) back, one message per 10ms frame.
type WebSocketHandler struct {
	sessions *SessionManager
	metrics  *Metrics
	zstd     bool
	opus     *OpusEncoder
}

func NewWebSocketHandler(sessions *SessionManager, metrics *Metrics, cfg ServerConfig) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		metrics:  metrics,
		zstd:     cfg.ZstdCompression,
		opus:     NewOpusEncoder(cfg.Opus),
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket: upgrade failed: %v", err)
		return
	}

	sourceIP := r.RemoteAddr
	stream, err := h.sessions.Open(sourceIP, r.Header.Get("User-Agent"))
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte(err.Error()))
		conn.Close()
		return
	}
	defer h.sessions.Close(stream.ID, "client_disconnect")
	defer conn.Close()

	log.Printf("websocket: stream %s opened from %s", stream.ID, sourceIP)

	wc := &wsConn{Conn: conn, zstd: h.zstd}
	if h.zstd {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		dec, _ := zstd.NewReader(nil)
		wc.enc, wc.dec = enc, dec
	}
	defer wc.close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go h.pingLoop(wc, done)
	defer close(done)

	var in, out [rnndsp.Frame]float32
	for {
		raw, err := wc.readFrame()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket: stream %s read error: %v", stream.ID, err)
			}
			return
		}
		if len(raw) != wsFrameBytes {
			log.Printf("websocket: stream %s got %d bytes, want %d; dropping frame", stream.ID, len(raw), wsFrameBytes)
			continue
		}
		decodeFrame(&in, raw)

		start := time.Now()
		vad := stream.ProcessFrame(&out, &in)
		if h.metrics != nil {
			h.metrics.RecordFrame("websocket", time.Since(start), vad)
		}

		msg, err := h.encodeOutgoing(&out, vad)
		if err != nil {
			log.Printf("websocket: stream %s opus encode error: %v", stream.ID, err)
			return
		}
		if err := wc.writeFrame(msg); err != nil {
			log.Printf("websocket: stream %s write error: %v", stream.ID, err)
			return
		}
	}
}

// encodeOutgoing builds the egress message after a 1-byte format tag:
// tag 0 is followed by the raw PCM frame and then a 4-byte VAD
// probability sidecar; tag 1 is followed by the 4-byte VAD probability
// and then the Opus packet.
// Opus is only ever produced when the binary was built with -tags opus
// and opus.enabled is configured true; otherwise this is PCM, matching
// the wire format the plain build always produces.
func (h *WebSocketHandler) encodeOutgoing(out *[rnndsp.Frame]float32, vad float32) ([]byte, error) {
	if h.opus != nil && h.opus.Enabled() {
		encoded, err := h.opus.Encode(out)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, 5+len(encoded))
		buf[0] = 1
		binary.LittleEndian.PutUint32(buf[1:5], math.Float32bits(vad))
		copy(buf[5:], encoded)
		return buf, nil
	}
	buf := make([]byte, 1+len(encodeFrame(out, vad)))
	buf[0] = 0
	copy(buf[1:], encodeFrame(out, vad))
	return buf, nil
}

func (h *WebSocketHandler) pingLoop(wc *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			wc.mu.Lock()
			wc.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := wc.Conn.WriteMessage(websocket.PingMessage, nil)
			wc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// wsConn wraps a gorilla websocket connection with an optional zstd
// codec and a write mutex.
type wsConn struct {
	*websocket.Conn
	mu   sync.Mutex
	zstd bool
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func (wc *wsConn) readFrame() ([]byte, error) {
	_, data, err := wc.Conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if wc.zstd && wc.dec != nil {
		return wc.dec.DecodeAll(data, make([]byte, 0, wsFrameBytes))
	}
	return data, nil
}

func (wc *wsConn) writeFrame(data []byte) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if wc.zstd && wc.enc != nil {
		data = wc.enc.EncodeAll(data, make([]byte, 0, len(data)))
	}
	return wc.Conn.WriteMessage(websocket.BinaryMessage, data)
}

func (wc *wsConn) close() error {
	if wc.enc != nil {
		wc.enc.Close()
	}
	if wc.dec != nil {
		wc.dec.Close()
	}
	return wc.Conn.Close()
}

// decodeFrame unpacks Frame little-endian float32 samples from raw.
func decodeFrame(out *[rnndsp.Frame]float32, raw []byte) {
	for i := 0; i < rnndsp.Frame; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		out[i] = math.Float32frombits(bits)
	}
}

// encodeFrame packs an output frame plus a trailing 4-byte VAD
// probability sidecar into a single message.
func encodeFrame(in *[rnndsp.Frame]float32, vad float32) []byte {
	buf := make([]byte, wsFrameBytes+4)
	for i, v := range in {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[wsFrameBytes:], math.Float32bits(vad))
	return buf
}
