package shipper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/riskwatch/riskwatch/agent/internal/config"
	"github.com/riskwatch/riskwatch/pkg/rpc"
	"github.com/riskwatch/riskwatch/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers sensor readings and submits them to riskwatch-server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest reading is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan types.SensorReading
	dialFn dialFunc // injectable for tests

	// pending is a reading whose send failed transiently; it is retried
	// before anything else in the buffer. Only Run's goroutine touches it.
	pending *types.SensorReading
}

// dialFunc is the function signature used to open a gRPC connection.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan types.SensorReading, cfg.BufferSize),
		dialFn: defaultDial,
	}
}

// Ship enqueues r. If the buffer is full the oldest entry is evicted to make room.
func (s *Shipper) Ship(r types.SensorReading) {
	for {
		select {
		case s.buf <- r:
			return
		default:
		}
		select {
		case old := <-s.buf:
			slog.Warn("shipper: buffer full, evicted oldest reading",
				"equipment_id", old.EquipmentID, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Len reports how many readings are waiting to be sent.
func (s *Shipper) Len() int { return len(s.buf) }

// Run drains the buffer, sending readings to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint,
				"err", err,
				"retry_in", wait)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint)

		err = s.drain(ctx, conn, bo)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"retry_in", wait)
		if !sleep(ctx, wait) {
			return
		}
	}
}

// drain sends readings until a transient failure or ctx is cancelled.
// A successful send resets bo.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn, bo *backoff) error {
	client := rpc.NewReadingServiceClient(conn)

	for {
		var r types.SensorReading
		if s.pending != nil {
			r = *s.pending
		} else {
			select {
			case <-ctx.Done():
				return nil
			case r = <-s.buf:
			}
		}

		err := s.send(ctx, client, r)
		switch {
		case err == nil:
			s.pending = nil
			bo.reset()
		case isPermanentError(err):
			// Retrying cannot help; the server rejected the reading itself.
			slog.Error("shipper: permanent send error, discarding reading",
				"equipment_id", r.EquipmentID, "err", err)
			s.pending = nil
		default:
			s.pending = &r
			return fmt.Errorf("send: %w", err)
		}
	}
}

func (s *Shipper) send(ctx context.Context, client rpc.ReadingServiceClient, r types.SensorReading) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if s.cfg.ServerAuth.Mode == "apikey" && s.cfg.ServerAuth.KeyEnv != "" {
		sendCtx = metadata.AppendToOutgoingContext(sendCtx,
			s.cfg.ServerAuth.EffectiveHeader(), s.cfg.ServerAuth.Key())
	}

	resp, err := client.SubmitReading(sendCtx, &rpc.SubmitReadingRequest{Reading: types.NewReadingInput(r)})
	if err != nil {
		return err
	}
	if !resp.Ok {
		slog.Warn("shipper: server rejected reading",
			"equipment_id", r.EquipmentID, "message", resp.Message)
		return nil
	}
	slog.Debug("shipper: reading delivered",
		"equipment_id", r.EquipmentID,
		"risk_level", resp.RiskLevel,
		"risk_score", resp.RiskScore,
		"event_id", resp.EventID)
	return nil
}

// isPermanentError returns true for gRPC errors that indicate the reading
// itself or the agent's credentials are invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// defaultDial opens a gRPC connection to endpoint with auth configured from cfg.
func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // NewClient needs grpc >= 1.63
}

// dialOptions builds grpc.DialOption slice based on the server auth config.
// apikey attaches the key per call in send(); none is plaintext for local dev.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	if cfg.ServerAuth.Mode != "mtls" {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
	tlsCfg, err := cfg.ServerAuth.ClientTLS(false)
	if err != nil {
		return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
	}
	return []grpc.DialOption{grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg))}, nil
}

// backoff implements truncated exponential backoff with ±25% jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
