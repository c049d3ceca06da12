package log

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const metadataKeyRequestID = "x-request-id"

// UnaryServerInterceptor puts a per-call logger in the handler context and
// logs the result.
func UnaryServerInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, done := startCall(ctx, logger, info.FullMethod)
		resp, err := handler(ctx, req)
		done(err)
		return resp, err
	}
}

// StreamServerInterceptor does the same for streams such as Health.Watch.
func StreamServerInterceptor(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, done := startCall(ss.Context(), logger, info.FullMethod)
		err := handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})
		done(err)
		return err
	}
}

type loggedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }

func startCall(ctx context.Context, logger zerolog.Logger, method string) (context.Context, func(error)) {
	start := time.Now()
	l := logger.With().
		Str(FieldRequestID, incomingRequestID(ctx)).
		Str(FieldGRPCMethod, method).
		Logger()

	return WithLogger(ctx, l), func(err error) {
		code := status.Code(err)
		evt := l.Debug()
		if code == codes.Internal || code == codes.Unknown {
			evt = l.Warn()
		}
		evt.Str(FieldGRPCCode, code.String()).
			Dur(FieldLatency, time.Since(start)).
			Err(err).
			Msg("grpc call completed")
	}
}

func incomingRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if ids := md.Get(metadataKeyRequestID); len(ids) > 0 && ids[0] != "" {
		return ids[0]
	}
	return uuid.NewString()
}
