package receiver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/riskwatch/riskwatch/pkg/rpc"
	"github.com/riskwatch/riskwatch/pkg/types"
	"github.com/riskwatch/riskwatch/server/internal/risk"
)

// Processor scores one validated reading.
type Processor interface {
	Process(ctx context.Context, r types.SensorReading) (risk.Assessment, error)
}

// Receiver implements rpc.ReadingServiceServer.
type Receiver struct {
	rpc.UnimplementedReadingServiceServer
	pipeline Processor
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Receiver that feeds accepted readings to p.
func New(p Processor) *Receiver {
	return &Receiver{pipeline: p, now: time.Now}
}

// SubmitReading is the unary RPC handler called by agents.
func (r *Receiver) SubmitReading(ctx context.Context, req *rpc.SubmitReadingRequest) (*rpc.SubmitReadingResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "reading is required")
	}
	reading, err := req.Reading.Reading(r.now())
	if err != nil {
		var verr *types.ValidationError
		if errors.As(err, &verr) {
			return nil, status.Error(codes.InvalidArgument, verr.Error())
		}
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a, err := r.pipeline.Process(ctx, reading)
	if err != nil {
		slog.Error("receiver: process reading failed", "equipment_id", reading.EquipmentID, "err", err)
		return nil, status.Error(codes.Unavailable, "alert history unavailable")
	}

	slog.Debug("receiver: reading processed",
		"equipment_id", a.EquipmentID,
		"level", a.Level,
		"score", a.RiskScore.StringFixed(2),
	)

	return &rpc.SubmitReadingResponse{
		Ok:        true,
		RiskLevel: a.Level.String(),
		RiskScore: a.RiskScore.StringFixed(2),
		Reason:    a.Reason,
		EventID:   a.EventID,
		ReadingID: a.ReadingID,
	}, nil
}
