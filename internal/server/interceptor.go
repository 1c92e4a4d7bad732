package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

const (
	RequestIDHeader = "x-request-id"
	TenantIDHeader  = "x-tenant-id"
)

// UnaryInterceptor puts the request and tenant ids on the context, echoes the
// request id back as a header and logs each call.
func UnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		md, _ := metadata.FromIncomingContext(ctx)

		requestID := first(md, RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, requestID)
		if tenant := first(md, TenantIDHeader); tenant != "" {
			ctx = common.WithTenantID(ctx, tenant)
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		resp, err := handler(ctx, req)

		code := status.Code(err)
		attrs := []any{
			"method", info.FullMethod,
			"request_id", requestID,
			"code", code.String(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			logger.Warn("grpc.request.failed", append(attrs, "error", err)...)
		} else {
			logger.Info("grpc.request.ok", attrs...)
		}
		return resp, err
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
