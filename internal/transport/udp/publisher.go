// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"ambience/internal/spectrum"
)

// Sender sends one datagram. *UDPSender satisfies it.
type Sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically reads the shared spectrum, packs it into a
// defined binary format and sends it with a Sender. It runs in a separate
// goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   Sender
	shared   *spectrum.Shared
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum uint32 // Monotonically increasing sequence number for packets.

	bins         []uint8       // Reused copy of the current buffer.
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates a publisher. If interval is not positive it
// defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender Sender, shared *spectrum.Shared) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("udp publisher: sender cannot be nil")
	}
	if shared == nil {
		return nil, errors.New("udp publisher: shared spectrum cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		logger.Warnf("invalid interval, defaulting to %s", interval)
	}
	logger.Infof("publisher initializing (interval %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		shared:       shared,
		interval:     interval,
		now:          time.Now,
		bins:         make([]uint8, spectrum.DefaultBins),
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic publishing process. It is safe to call Start
// multiple times; subsequent calls are no-ops while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		logger.Warnf("publisher Start called but already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("publisher goroutine started")
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to
// exit. It is safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Debugf("publisher stopped after %d packets", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Bin Count         | uint16         | 2            | Number of bins (N)      |
| Bins              | []uint8        | N            | Byte magnitudes 0-255   |
+-----------------------------------------------------------------------------+
*/

// HeaderSize is the byte length of the packet header.
const HeaderSize = 4 + 8 + 2

// Packet is a decoded spectrum datagram.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Bins      []uint8
}

var errShortPacket = errors.New("udp packet too short")

// DecodePacket parses a datagram built by UDPPublisher.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, errShortPacket
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) < HeaderSize+n {
		return Packet{}, errShortPacket
	}
	return Packet{
		Seq:       binary.BigEndian.Uint32(b[0:4]),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:12])),
		Bins:      append([]uint8(nil), b[HeaderSize:HeaderSize+n]...),
	}, nil
}

// buildAndSendPacket reads the current buffer, packs it and sends it.
func (p *UDPPublisher) buildAndSendPacket() {
	buf := p.shared.Read()
	if cap(p.bins) < buf.Len() {
		p.bins = make([]uint8, buf.Len())
	}
	p.bins = p.bins[:buf.CopyTo(p.bins[:cap(p.bins)])]

	p.sequenceNum++
	p.packetBuffer.Reset()
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[0:4], p.sequenceNum)
	binary.BigEndian.PutUint64(header[4:12], uint64(p.now().UnixNano()))
	binary.BigEndian.PutUint16(header[12:14], uint16(len(p.bins)))
	p.packetBuffer.Write(header[:])
	p.packetBuffer.Write(p.bins)

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		logger.Debugf("sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close implements the io.Closer interface. It gracefully stops the publisher goroutine.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

// Ensure UDPPublisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*UDPPublisher)(nil)
