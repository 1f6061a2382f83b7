package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// IdentityResolver validates credentials against the user store and returns
// the matching principal. The identifier is classified by the resolver:
// an email (contains "@"), an 11-digit CPF, or otherwise a doctor CRM.
type IdentityResolver interface {
	Authenticate(ctx context.Context, identifier, password string) (Principal, error)
}

// Middleware authenticates every request with either Basic credentials or a
// Bearer token issued by the login endpoint. Paths listed in skip are served
// unauthenticated.
func Middleware(resolver IdentityResolver, tokens TokenConfig, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipped[c.Request().URL.Path] {
				return next(c)
			}

			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			var p Principal
			switch {
			case strings.EqualFold(parts[0], "basic"):
				identifier, password, ok := decodeBasic(parts[1])
				if !ok {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid basic credentials")
				}
				resolved, err := resolver.Authenticate(c.Request().Context(), identifier, password)
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
				}
				p = resolved
			case strings.EqualFold(parts[0], "bearer"):
				parsed, err := ParseToken(tokens, parts[1])
				if err != nil {
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				p = parsed
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "unsupported authorization scheme")
			}

			ctx := WithPrincipal(c.Request().Context(), p)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func decodeBasic(param string) (identifier, password string, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(param)
	if err != nil {
		return "", "", false
	}
	pair := strings.SplitN(string(raw), ":", 2)
	if len(pair) != 2 {
		return "", "", false
	}
	return pair[0], pair[1], true
}
