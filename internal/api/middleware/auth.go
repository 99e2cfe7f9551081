package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/shopstore/internal/api/handler/v1/response"
	"github.com/vietanh2810/shopstore/internal/pkg/jwthelper"
)

const claimsKey = "claims"

type Authenticator struct {
	jwtSigningKey []byte
}

func NewAuthenticator(jwtSigningKey string) *Authenticator {
	return &Authenticator{
		jwtSigningKey: []byte(jwtSigningKey),
	}
}

// VerifyJWT rejects requests without a valid bearer token and stores its
// claims on the context.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errors.New("missing bearer token")))
			return
		}

		claims, err := jwthelper.ParseToken(a.jwtSigningKey, token)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			return
		}

		ctx.Set(claimsKey, claims)
		ctx.Next()
	}
}

// RequireAdmin must run after VerifyJWT.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		claims, ok := Claims(ctx)
		if !ok || !claims.IsAdmin() {
			response.RenderErr(ctx, response.ErrPermissionDenied(errors.New("admin token required")))
			return
		}
		ctx.Next()
	}
}

func Claims(ctx *gin.Context) (*jwthelper.Claims, bool) {
	v, ok := ctx.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwthelper.Claims)
	return claims, ok
}
