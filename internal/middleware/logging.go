package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/relaygate/relay-bot/internal/command"
	"github.com/relaygate/relay-bot/pkg/logger"
)

// DeliveryLogging logs every processed delivery with its correlation id.
func DeliveryLogging(log *slog.Logger) Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, d *Delivery) (*command.Response, error) {
			start := time.Now()
			resp, err := next(ctx, d)

			attrs := []any{
				slog.Int64("user_id", d.Request.User.ID),
				slog.Int64("chat_id", d.Request.Chat.ID),
				slog.Int("update_id", d.UpdateID),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
			}

			if err != nil {
				log.Error("delivery failed", append(attrs, slog.Any("error", err))...)
				return resp, err
			}

			log.Info("delivery handled", attrs...)
			return resp, nil
		}
	}
}

// HTTPLogging creates an HTTP middleware that logs request and response
// details on the operational server.
func HTTPLogging(log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			recorder := httptest.NewRecorder()
			next.ServeHTTP(recorder, r)

			for key, values := range recorder.Header() {
				for _, value := range values {
					w.Header().Add(key, value)
				}
			}

			statusCode := recorder.Code
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			w.WriteHeader(statusCode)
			_, _ = recorder.Body.WriteTo(w)

			log.Info(
				"handled http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", logger.CorrelationIDFromContext(r.Context())),
			)
		})
	}
}
