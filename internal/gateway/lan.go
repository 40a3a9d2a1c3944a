package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/nerrad567/lumen-bridge/internal/infrastructure/config"
	"github.com/nerrad567/lumen-bridge/internal/lanproto"
	"github.com/nerrad567/lumen-bridge/internal/telemetry"
)

// updateSink receives transport updates for reconciliation. *bus.Bus
// satisfies this.
type updateSink interface {
	Publish(update telemetry.TransportUpdate) (bool, error)
}

// confirmer receives decoded acknowledgements so pending commands can be
// cleared. The command dispatcher satisfies this.
type confirmer interface {
	HandleConfirmation(update telemetry.TransportUpdate)
}

// maxDatagramSize bounds inbound local-protocol messages.
const maxDatagramSize = 8192

// LANTransport is the local-network control path: a UDP listener for
// device responses and broadcast advertisements, a periodic multicast
// discovery scan, and the command sender the dispatcher prefers when a
// device is reachable.
type LANTransport struct {
	cfg      config.LANConfig
	registry *Registry
	sink     updateSink

	logger Logger
	clock  func() time.Time

	mu      sync.Mutex
	conn    *net.UDPConn
	confirm confirmer
}

// NewLANTransport creates the local transport. Start must be called
// before Send or the listener loops run.
func NewLANTransport(cfg config.LANConfig, registry *Registry, sink updateSink) *LANTransport {
	return &LANTransport{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		logger:   noopLogger{},
		clock:    time.Now,
	}
}

// SetLogger sets the transport logger.
func (t *LANTransport) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// SetConfirmer wires the dispatcher's acknowledgement handler. The
// dispatcher is constructed after the transport, so this is a setter
// rather than a constructor argument.
func (t *LANTransport) SetConfirmer(c confirmer) {
	t.mu.Lock()
	t.confirm = c
	t.mu.Unlock()
}

// Start opens the listener socket and launches the receive, scan and
// reachability loops. They stop when the context is cancelled.
func (t *LANTransport) Start(ctx context.Context) error {
	listenAddr := &net.UDPAddr{Port: t.cfg.ListenPort}
	conn, err := net.ListenUDP("udp4", listenAddr)
	if err != nil {
		return fmt.Errorf("opening lan listener on port %d: %w", t.cfg.ListenPort, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	t.logger.Info("lan listener started",
		"listen_port", t.cfg.ListenPort,
		"broadcast", net.JoinHostPort(t.cfg.BroadcastAddr, strconv.Itoa(t.cfg.BroadcastPort)),
	)

	go t.readLoop(ctx, conn)
	go t.scanLoop(ctx, conn)
	go t.reachabilityLoop(ctx)

	return nil
}

// Close shuts the listener socket, unblocking the read loop.
func (t *LANTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Reachable reports whether the device can currently be commanded over
// the local network.
func (t *LANTransport) Reachable(device telemetry.DeviceID) bool {
	return t.cfg.Enabled && t.registry.Reachable(device)
}

// Send delivers command payloads to the device's command port. One
// datagram per payload, in order.
func (t *LANTransport) Send(ctx context.Context, device telemetry.DeviceID, payloads [][]byte) error {
	addr, ok := t.registry.Addr(device)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceUnreachable, device)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "udp4",
		net.JoinHostPort(addr, strconv.Itoa(t.cfg.DevicePort)))
	if err != nil {
		return fmt.Errorf("dialing %s: %w", device, err)
	}
	defer conn.Close() //nolint:errcheck // Fire-and-forget datagram socket

	for _, payload := range payloads {
		if _, err := conn.Write(payload); err != nil {
			return fmt.Errorf("sending to %s: %w", device, err)
		}
	}
	return nil
}

// RequestStatus asks the device for a full state report. Used for
// post-dispatch convergence polls.
func (t *LANTransport) RequestStatus(ctx context.Context, device telemetry.DeviceID) error {
	payload, err := lanproto.EncodeStatusRequest()
	if err != nil {
		return err
	}
	return t.Send(ctx, device, [][]byte{payload})
}

// readLoop receives datagrams until the socket closes.
func (t *LANTransport) readLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			t.logger.Warn("lan read error", "error", err)
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		t.handleDatagram(ctx, data, src.IP.String())
	}
}

// handleDatagram decodes one inbound message and routes its parts: scan
// responses bind the registry, acknowledgements and status reports clear
// pending commands, and every update feeds the bus. A malformed message
// is logged and dropped without affecting other devices' streams.
func (t *LANTransport) handleDatagram(ctx context.Context, data []byte, srcAddr string) {
	now := t.clock()
	device, _ := t.registry.ByAddr(srcAddr)

	decoded, err := lanproto.Decode(device, data, now)
	if err != nil {
		t.logger.Warn("dropping malformed lan message",
			"src", srcAddr,
			"device", device.String(),
			"error", err,
		)
		return
	}

	if decoded.Scan != nil {
		id := telemetry.DeviceID{ID: decoded.Scan.Device, Model: decoded.Scan.SKU}
		addr := decoded.Scan.IP
		if addr == "" {
			addr = srcAddr
		}
		t.registry.Bind(ctx, id, addr, now)
	} else if !device.IsZero() {
		t.registry.Touch(device, now)
	}

	if decoded.Update != nil {
		// Acks and status reports both confirm pending commands: a poll
		// answer showing the commanded value is as good as an ack.
		t.mu.Lock()
		confirm := t.confirm
		t.mu.Unlock()
		if confirm != nil {
			confirm.HandleConfirmation(*decoded.Update)
		}

		if _, err := t.sink.Publish(*decoded.Update); err != nil {
			t.logger.Error("publishing lan update", "error", err)
		}
	}
}

// scanLoop runs the multicast discovery scan on the configured cadence,
// with one scan immediately at startup.
func (t *LANTransport) scanLoop(ctx context.Context, conn *net.UDPConn) {
	interval := time.Duration(t.cfg.ScanIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	t.sendScan(conn)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sendScan(conn)
		}
	}
}

// sendScan multicasts one discovery request.
func (t *LANTransport) sendScan(conn *net.UDPConn) {
	payload, err := lanproto.EncodeScanRequest()
	if err != nil {
		t.logger.Error("encoding scan request", "error", err)
		return
	}
	dest := &net.UDPAddr{
		IP:   net.ParseIP(t.cfg.BroadcastAddr),
		Port: t.cfg.BroadcastPort,
	}
	if _, err := conn.WriteToUDP(payload, dest); err != nil {
		t.logger.Warn("sending discovery scan", "error", err)
	}
}

// reachabilityLoop marks silent bindings unreachable, feeding the bus an
// offline liveness observation for each lapse.
func (t *LANTransport) reachabilityLoop(ctx context.Context) {
	interval := time.Duration(t.cfg.OfflineAfterSeconds) * time.Second / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := t.clock()
			for _, device := range t.registry.MarkStale(now) {
				t.logger.Info("device silent, marking unreachable",
					"device", device.String(),
				)
				update := telemetry.TransportUpdate{
					Device:     device,
					Source:     telemetry.SourceLocalCommand,
					ObservedAt: now,
					Fields: []telemetry.FieldObservation{
						{Value: telemetry.Online(false), Timestamp: now},
					},
				}
				if _, err := t.sink.Publish(update); err != nil {
					t.logger.Error("publishing offline update", "error", err)
				}
			}
		}
	}
}
