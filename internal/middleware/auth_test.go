package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func run(token string) (*fasthttp.RequestCtx, bool) {
	ctx := &fasthttp.RequestCtx{}
	if token != "" {
		ctx.Request.Header.Set("Authorization", "Bearer "+token)
	}
	called := false
	JWTAuth(testSecret, "notifyagg", nil)(func(*fasthttp.RequestCtx) { called = true })(ctx)
	return ctx, called
}

func TestJWTAuth_ValidToken(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"user_id": "user-1",
		"role":    RoleAdmin,
		"iss":     "notifyagg",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	ctx, called := run(token)

	assert.True(t, called)
	assert.Equal(t, "user-1", UserID(ctx))
	assert.Equal(t, RoleAdmin, Role(ctx))
	assert.Equal(t, "user-1", string(ctx.Request.Header.Peek("X-User-ID")))
}

func TestJWTAuth_SubjectFallback(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub": "user-2",
		"iss": "notifyagg",
	})

	ctx, called := run(token)

	assert.True(t, called)
	assert.Equal(t, "user-2", UserID(ctx))
	assert.Empty(t, Role(ctx))
}

func TestJWTAuth_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing": "",
		"garbage": "not-a-token",
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{
			"user_id": "user-1", "iss": "notifyagg",
		}),
		"wrong issuer": signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"user_id": "user-1", "iss": "someone-else",
		}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"user_id": "user-1", "iss": "notifyagg", "exp": time.Now().Add(-time.Hour).Unix(),
		}),
		"no subject": signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"iss": "notifyagg",
		}),
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, called := run(token)
			assert.False(t, called)
			assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
			assert.Empty(t, UserID(ctx))
		})
	}
}

func TestJWTAuth_RejectsNoneAlgorithm(t *testing.T) {
	token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{
		"user_id": "user-1", "iss": "notifyagg",
	})

	ctx, called := run(token)

	assert.False(t, called)
	assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
}

func TestRequireRole(t *testing.T) {
	guarded := RequireRole(RoleAdmin)(func(ctx *fasthttp.RequestCtx) { ctx.SetStatusCode(fasthttp.StatusNoContent) })

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue(roleKey, RoleService)
	guarded(ctx)
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())

	ctx = &fasthttp.RequestCtx{}
	ctx.SetUserValue(roleKey, RoleAdmin)
	guarded(ctx)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
}
