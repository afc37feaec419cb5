// Package auth authenticates callers arriving over HTTP with HS256 tokens
// whose subject is an address. Coordinator tokens authorize randomness
// deliveries; account tokens authorize changes to the subject's own account.
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vrfraffle/pkg/domain"
	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/platform/httputil"
	"vrfraffle/pkg/requestcontext"
)

const (
	callbackAudience = "raffle-fulfillment"
	accountAudience  = "raffle-account"
)

// Claims carried by a callback token.
type Claims struct {
	jwt.RegisteredClaims
}

// CallbackAuth issues and validates callback tokens with a shared secret.
type CallbackAuth struct {
	signingKey []byte
	issuer     string
}

func New(secret, issuer string) *CallbackAuth {
	return &CallbackAuth{signingKey: []byte(secret), issuer: issuer}
}

// Issue signs a callback token for coordinator valid for ttl.
func (a *CallbackAuth) Issue(coordinator common.Address, ttl time.Duration) (string, error) {
	return a.issue(coordinator, callbackAudience, ttl)
}

// IssueAccount signs a token letting owner manage its own account.
func (a *CallbackAuth) IssueAccount(owner common.Address, ttl time.Duration) (string, error) {
	return a.issue(owner, accountAudience, ttl)
}

// Validate checks a callback token and returns the caller address in its subject.
func (a *CallbackAuth) Validate(tokenString string) (common.Address, error) {
	return a.validate(tokenString, callbackAudience)
}

// ValidateAccount checks an account token and returns the owner address.
func (a *CallbackAuth) ValidateAccount(tokenString string) (common.Address, error) {
	return a.validate(tokenString, accountAudience)
}

func (a *CallbackAuth) issue(subject common.Address, aud string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.Hex(),
			Issuer:    a.issuer,
			Audience:  []string{aud},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(a.signingKey)
}

func (a *CallbackAuth) validate(tokenString, aud string) (common.Address, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.signingKey, nil
	},
		jwt.WithAudience(aud),
		jwt.WithIssuer(a.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.Address{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return common.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return common.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	subject, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return common.Address{}, dErrors.New(dErrors.CodeUnauthorized, "token subject is not an address")
	}
	return subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return token, ok && token != ""
}

// RequireCaller rejects requests without a valid bearer token and stores the
// authenticated caller in the request context.
func RequireCaller(a *CallbackAuth, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized fulfilment - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}
			caller, err := a.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized fulfilment - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}

// RequireAccountOwner admits only requests carrying an account token whose
// subject is the address in the route parameter param.
func RequireAccountOwner(a *CallbackAuth, logger *slog.Logger, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized account change - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}
			owner, err := a.ValidateAccount(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized account change - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			target, err := domain.ParseAddress(chi.URLParam(r, param))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if owner != target {
				logger.WarnContext(ctx, "account change rejected - token belongs to another account",
					"owner", owner.Hex(),
					"account", target.Hex(),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token does not belong to this account"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, owner)))
		})
	}
}
