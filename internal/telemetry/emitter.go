// Package telemetry is a fire-and-forget UDP broadcaster of per-call
// performance records and a periodic tool-catalogue discovery
// advertisement. A bounded channel feeds a single sender goroutine;
// producers never block, records that don't fit are dropped and counted.
package telemetry

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
)

// MaxDatagramBytes is the pragmatic target for a single, non-fragmented LAN
// UDP datagram. 65 KiB is the protocol-level UDP payload ceiling; this is
// the hard cap past which a record is dropped rather than truncated
// further.
const MaxDatagramBytes = 1472

// PerfRecord summarizes one tool invocation.
type PerfRecord struct {
	Version   int            `json:"v"`
	Type      string         `json:"t"`
	Timestamp int64          `json:"ts"`
	ServerID  string         `json:"sid"`
	Tool      string         `json:"tool"`
	ExecMS    int64          `json:"exec_ms"`
	Success   bool           `json:"success"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Context   map[string]any `json:"ctx,omitempty"`
	CostPaid  *float64       `json:"cost_paid,omitempty"`
	Currency  string         `json:"currency,omitempty"`

	// Event, when set, marks this perf_update as carrying a follow-up
	// notice rather than the primary per-call record, e.g.
	// "settlement_failed", emitted after settlement completes. The primary
	// record goes out before settlement starts, so it can never itself
	// carry the settlement outcome.
	Event string `json:"event,omitempty"`
}

// ConnectorAuthDetail describes one enabled payment rail for discovery
// advertisements.
type ConnectorAuthDetail struct {
	Rail    string `json:"rail"`
	Network string `json:"network"`
	Asset   string `json:"asset"`
	PayTo   string `json:"payTo"`
}

// Connector describes how a client reaches this server for a given tool.
type Connector struct {
	Transport string                `json:"transport"`
	Endpoint  string                `json:"endpoint"`
	AuthType  string                `json:"auth_type"`
	Details   []ConnectorAuthDetail `json:"details,omitempty"`
}

// DiscoveryRecord advertises one registered tool.
type DiscoveryRecord struct {
	Version     string    `json:"v"`
	Type        string    `json:"t"`
	Timestamp   int64     `json:"ts"`
	ServerID    string    `json:"sid"`
	ServerName  string    `json:"server_name"`
	Tool        string    `json:"tool"`
	Description string    `json:"description,omitempty"`
	Connector   Connector `json:"connector"`
}

// Emitter owns the telemetry socket and a single sender goroutine fed by a
// bounded channel. Producers (the protocol Router and the discovery loop)
// never block: a full channel
// means the record is dropped and Dropped() is incremented.
type Emitter struct {
	conn    *net.UDPConn
	queue   chan []byte
	dropped atomic.Uint64
	done    chan struct{}
}

// New dials hostPort (unicast or multicast, chosen by address class) and
// starts the sender goroutine. queueSize bounds the number of records
// buffered between producer and sender before new records are dropped.
func New(hostPort string, queueSize int) (*Emitter, error) {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, err
	}

	raddr, err := net.ResolveUDPAddr("udp", hostPort)
	if err != nil {
		return nil, err
	}

	// A send-only emitter dials the multicast group like any unicast peer;
	// we never join the group to read, so ListenMulticastUDP isn't needed.
	// The IsMulticast check exists so logs can tell which socket class is
	// in play.
	isMulticast := false
	if ip := net.ParseIP(host); ip != nil {
		isMulticast = ip.IsMulticast()
	}
	slog.Debug("telemetry: dialing", "addr", hostPort, "multicast", isMulticast)

	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}

	e := &Emitter{conn: conn, queue: make(chan []byte, queueSize), done: make(chan struct{})}
	go e.senderLoop()
	return e, nil
}

func (e *Emitter) senderLoop() {
	for {
		select {
		case <-e.done:
			return
		case payload := <-e.queue:
			if _, err := e.conn.Write(payload); err != nil {
				slog.Debug("telemetry: send failed", "error", err)
			}
		}
	}
}

// EmitPerf serializes and enqueues a perf record. Never blocks: if the
// queue is full the record is dropped and counted.
func (e *Emitter) EmitPerf(rec PerfRecord) {
	rec.Version = 2
	rec.Type = "perf_update"
	rec.Timestamp = time.Now().Unix()
	e.enqueue(rec)
}

// EmitDiscovery serializes and enqueues a discovery record.
func (e *Emitter) EmitDiscovery(rec DiscoveryRecord) {
	rec.Type = "semantic_discover"
	rec.Timestamp = time.Now().Unix()
	e.enqueue(rec)
}

func (e *Emitter) enqueue(rec any) {
	payload, err := json.Marshal(rec)
	if err != nil {
		slog.Debug("telemetry: encode failed", "error", err)
		e.dropped.Add(1)
		return
	}

	if len(payload) > MaxDatagramBytes {
		payload = e.truncated(rec, payload)
		if payload == nil {
			e.dropped.Add(1)
			return
		}
	}

	select {
	case e.queue <- payload:
	default:
		e.dropped.Add(1)
	}
}

// truncated attempts to shrink an oversize record by clearing ctx first
// (argument contents go before any other field) and returns nil if the
// record still doesn't fit the hard cap after truncation.
func (e *Emitter) truncated(rec any, original []byte) []byte {
	perf, ok := rec.(PerfRecord)
	if !ok {
		return nil
	}
	if perf.Context != nil {
		perf.Context = map[string]any{"truncated": true}
	}
	payload, err := json.Marshal(perf)
	if err != nil || len(payload) > MaxDatagramBytes {
		return nil
	}
	return payload
}

// Dropped returns the number of records dropped so far. The /health and
// /mcp-info endpoints do not report it.
func (e *Emitter) Dropped() uint64 { return e.dropped.Load() }

// Close stops the sender goroutine and closes the socket.
func (e *Emitter) Close() error {
	close(e.done)
	return e.conn.Close()
}

// Sink is the capability the rest of the server needs from the Emitter.
// Satisfied structurally by *Emitter and by Noop, so callers that run with
// DCAP disabled don't need a nil check on every emit call.
type Sink interface {
	EmitPerf(PerfRecord)
	EmitDiscovery(DiscoveryRecord)
}

// Noop is a Sink that discards every record, used when DCAP_ENABLED=false:
// the rest of the server still calls EmitPerf/EmitDiscovery
// unconditionally, it just talks to a sink that throws everything away.
type Noop struct{}

func (Noop) EmitPerf(PerfRecord)           {}
func (Noop) EmitDiscovery(DiscoveryRecord) {}
