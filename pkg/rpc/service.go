package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/riskwatch/riskwatch/pkg/types"
)

const (
	serviceName         = "riskwatch.v1.ReadingService"
	submitReadingMethod = "/" + serviceName + "/SubmitReading"
)

// SubmitReadingRequest carries one sensor reading from an agent.
type SubmitReadingRequest struct {
	Reading types.ReadingInput `json:"reading"`
}

// SubmitReadingResponse reports the risk assessment computed for the reading.
type SubmitReadingResponse struct {
	Ok        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	RiskLevel string `json:"risk_level,omitempty"`
	RiskScore string `json:"risk_score,omitempty"`
	Reason    string `json:"reason,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	ReadingID string `json:"reading_id,omitempty"`
}

// ReadingServiceServer is the server API for ReadingService.
type ReadingServiceServer interface {
	SubmitReading(context.Context, *SubmitReadingRequest) (*SubmitReadingResponse, error)
}

// UnimplementedReadingServiceServer can be embedded to satisfy the interface
// before every method is implemented.
type UnimplementedReadingServiceServer struct{}

func (UnimplementedReadingServiceServer) SubmitReading(context.Context, *SubmitReadingRequest) (*SubmitReadingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SubmitReading not implemented")
}

// RegisterReadingServiceServer registers srv with s.
func RegisterReadingServiceServer(s grpc.ServiceRegistrar, srv ReadingServiceServer) {
	s.RegisterService(&readingServiceDesc, srv)
}

func submitReadingHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitReadingRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReadingServiceServer).SubmitReading(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: submitReadingMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ReadingServiceServer).SubmitReading(ctx, req.(*SubmitReadingRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var readingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ReadingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SubmitReading",
			Handler:    submitReadingHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "riskwatch/v1/reading.json",
}

// ReadingServiceClient is the client API for ReadingService.
type ReadingServiceClient interface {
	SubmitReading(ctx context.Context, in *SubmitReadingRequest, opts ...grpc.CallOption) (*SubmitReadingResponse, error)
}

type readingServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewReadingServiceClient returns a client that speaks the JSON codec over cc.
func NewReadingServiceClient(cc grpc.ClientConnInterface) ReadingServiceClient {
	return &readingServiceClient{cc: cc}
}

func (c *readingServiceClient) SubmitReading(ctx context.Context, in *SubmitReadingRequest, opts ...grpc.CallOption) (*SubmitReadingResponse, error) {
	out := new(SubmitReadingResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, submitReadingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
