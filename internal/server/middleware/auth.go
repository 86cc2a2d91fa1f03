package middleware

import (
	"context"
	"strings"

	"AlertGate/internal/conf"
	pkglog "AlertGate/pkg/log"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Auth returns a middleware validating the producer API key. The key is
// accepted from "Authorization: Bearer {key}" or the X-API-Key header.
// With no key configured the middleware passes everything through, which is
// the local-development mode; the startup log warns about it.
func Auth(authConf *conf.Auth, logger *pkglog.LogHelper) middleware.Middleware {
	configured := ""
	if authConf != nil {
		configured = authConf.APIKey
	}
	if configured == "" {
		logger.Warnw("msg", "API key is not configured, HTTP surface is unauthenticated")
	}

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			if configured == "" {
				return handler(ctx, req)
			}

			apiKey := ""
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					authHeader := httpReq.Header.Get("Authorization")
					if authHeader != "" {
						apiKey = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
					}
					if apiKey == "" {
						apiKey = httpReq.Header.Get("X-API-Key")
					}
				}
			}

			if apiKey != configured {
				logger.Auth("rejected request with missing or invalid API key",
					"api_key", apiKey)
				return nil, kerrors.New(401, "UNAUTHORIZED", "missing or invalid API key")
			}

			return handler(ctx, req)
		}
	}
}
