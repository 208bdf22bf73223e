package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"

	"github.com/pion/rtp"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"github.com/cwsl/rnnoise-go/internal/rnndsp"
)

// RTPCollector ingests a single mono 48kHz L16 RTP multicast stream,
// denoises it frame by frame through a dedicated Stream, and republishes
// the result on an RTP multicast egress group. Adapted from the
// teacher's AudioReceiver in audio.go: same multicast-join and
// SO_REUSEPORT/SO_REUSEADDR socket setup, same pion/rtp unmarshal-based
// receive loop, generalized from routing-by-SSRC-to-many-sessions down
// to a single ingest/egress pair (a denoiser sits on one link, not a
// fan-out of receiver channels).
type RTPCollector struct {
	cfg      RTPConfig
	sessions *SessionManager
	stream   *Stream

	iface     *net.Interface
	ingestLn  *net.UDPConn
	egressLn  *net.UDPConn
	egressDst *net.UDPAddr

	mu      sync.Mutex
	running bool

	egressSSRC uint32
	egressSeq  uint16
}

// NewRTPCollector resolves the configured multicast group and opens an
// internal Stream to denoise it through.
func NewRTPCollector(cfg RTPConfig, sessions *SessionManager) (*RTPCollector, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("rtp: collector disabled in config")
	}

	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", cfg.MulticastIP, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("rtp: resolve multicast addr: %w", err)
	}

	var iface *net.Interface
	if cfg.Interface != "" {
		iface, err = net.InterfaceByName(cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("rtp: interface %s: %w", cfg.Interface, err)
		}
	}

	ingestLn, err := setupMulticastSocket(addr, iface)
	if err != nil {
		return nil, fmt.Errorf("rtp: setup ingest socket: %w", err)
	}

	egressLn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		ingestLn.Close()
		return nil, fmt.Errorf("rtp: open egress socket: %w", err)
	}
	egressAddr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", cfg.MulticastIP, cfg.Port+1))
	if err != nil {
		ingestLn.Close()
		egressLn.Close()
		return nil, fmt.Errorf("rtp: resolve egress addr: %w", err)
	}

	stream, err := sessions.Open(addr.String(), "rtp-collector")
	if err != nil {
		ingestLn.Close()
		egressLn.Close()
		return nil, fmt.Errorf("rtp: open stream: %w", err)
	}

	return &RTPCollector{
		cfg:        cfg,
		sessions:   sessions,
		stream:     stream,
		iface:      iface,
		ingestLn:   ingestLn,
		egressLn:   egressLn,
		egressDst:  egressAddr,
		egressSSRC: 0x524e4e4f, // "RNNO"
	}, nil
}

// setupMulticastSocket sets SO_REUSEPORT and SO_REUSEADDR so multiple
// collectors can bind the same group, then joins on the requested
// interface and loopback.
func setupMulticastSocket(addr *net.UDPAddr, iface *net.Interface) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
					sockErr = fmt.Errorf("SO_REUSEPORT: %w", err)
					return
				}
				if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
					sockErr = fmt.Errorf("SO_REUSEADDR: %w", err)
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	conn, err := lc.ListenPacket(context.Background(), "udp4", addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	udpConn := conn.(*net.UDPConn)
	if err := udpConn.SetReadBuffer(1024 * 1024); err != nil {
		log.Printf("rtp: warning: set read buffer: %v", err)
	}

	p := ipv4.NewPacketConn(udpConn)
	if iface != nil {
		if err := p.JoinGroup(iface, addr); err != nil {
			log.Printf("rtp: warning: join group on %s: %v", iface.Name, err)
		}
	}
	if loop, err := loopbackInterface(); err == nil {
		if err := p.JoinGroup(loop, addr); err != nil {
			log.Printf("rtp: warning: join group on loopback: %v", err)
		}
	}
	return udpConn, nil
}

func loopbackInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			return &iface, nil
		}
	}
	return nil, fmt.Errorf("rtp: no loopback interface")
}

// Start runs the receive loop in a new goroutine.
func (c *RTPCollector) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.receiveLoop()
	log.Printf("rtp: collector listening on %s:%d, egress to %s", c.cfg.MulticastIP, c.cfg.Port, c.egressDst)
}

// Stop closes both sockets and the internal stream.
func (c *RTPCollector) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.mu.Unlock()

	c.ingestLn.Close()
	c.egressLn.Close()
	c.sessions.Close(c.stream.ID, "rtp_collector_stop")
}

func (c *RTPCollector) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// pcmFrame accumulates L16 big-endian mono samples across packets until a
// full Frame (480 samples, 10ms @ 48kHz) is available.
type pcmFrame struct {
	buf []int16
}

func (c *RTPCollector) receiveLoop() {
	buffer := make([]byte, 65536)
	var acc pcmFrame
	var in, out [rnndsp.Frame]float32

	for c.isRunning() {
		n, _, err := c.ingestLn.ReadFromUDP(buffer)
		if err != nil {
			if c.isRunning() {
				log.Printf("rtp: read error: %v", err)
			}
			continue
		}
		if n < 12 {
			continue
		}

		packet := &rtp.Packet{}
		if err := packet.Unmarshal(buffer[:n]); err != nil {
			log.Printf("rtp: unmarshal error: %v", err)
			continue
		}

		for i := 0; i+1 < len(packet.Payload); i += 2 {
			sample := int16(packet.Payload[i])<<8 | int16(packet.Payload[i+1])
			acc.buf = append(acc.buf, sample)
		}

		for len(acc.buf) >= rnndsp.Frame {
			for i := 0; i < rnndsp.Frame; i++ {
				in[i] = float32(acc.buf[i]) / 32768.0
			}
			acc.buf = acc.buf[rnndsp.Frame:]

			c.stream.ProcessFrame(&out, &in)
			c.emitEgress(&out, packet.Timestamp)
		}
	}
}

// emitEgress packetizes a denoised frame as L16 RTP and writes it to the
// egress multicast group.
func (c *RTPCollector) emitEgress(out *[rnndsp.Frame]float32, ts uint32) {
	payload := make([]byte, rnndsp.Frame*2)
	for i, v := range out {
		s := int16(clampSample(v) * 32767.0)
		payload[i*2] = byte(s >> 8)
		payload[i*2+1] = byte(s)
	}

	c.egressSeq++
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    11, // L16 mono, per RTP/AVP static assignment
			SequenceNumber: c.egressSeq,
			Timestamp:      ts,
			SSRC:           c.egressSSRC,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	if err != nil {
		log.Printf("rtp: marshal egress packet: %v", err)
		return
	}
	if _, err := c.egressLn.WriteToUDP(raw, c.egressDst); err != nil {
		log.Printf("rtp: write egress packet: %v", err)
	}
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
