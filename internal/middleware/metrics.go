// internal/middleware/metrics.go
package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/ripeness-service/internal/metrics"
)

// Metrics records Prometheus histogram metrics for HTTP requests, labelled by
// method, matched route and status code.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPLatency(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}

// UnaryMetricsInterceptor records Prometheus histogram metrics for gRPC unary calls.
// It measures the duration of each call and records it with method and status code labels.
func UnaryMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start).Seconds()

		code := "OK"
		if err != nil {
			if st, ok := status.FromError(err); ok {
				code = st.Code().String()
			} else {
				code = "Unknown"
			}
		}

		method := "unknown"
		if info != nil {
			method = info.FullMethod
		}
		metrics.RecordGRPCLatency(method, code, duration)

		return resp, err
	}
}
