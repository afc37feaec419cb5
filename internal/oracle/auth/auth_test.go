package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vrfraffle/pkg/domain-errors"
	"vrfraffle/pkg/requestcontext"
)

var coordinator = common.HexToAddress("0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625")

func TestIssueAndValidate(t *testing.T) {
	a := New("test-secret", "test-oracle")

	t.Run("round trips the coordinator address", func(t *testing.T) {
		token, err := a.Issue(coordinator, time.Minute)
		require.NoError(t, err)
		caller, err := a.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, coordinator, caller)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := a.Issue(coordinator, -time.Minute)
		require.NoError(t, err)
		_, err = a.Validate(token)
		require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, "token has expired"))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := New("other-secret", "test-oracle").Issue(coordinator, time.Minute)
		require.NoError(t, err)
		_, err = a.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := New("test-secret", "someone-else").Issue(coordinator, time.Minute)
		require.NoError(t, err)
		_, err = a.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("account token is not a callback token", func(t *testing.T) {
		token, err := a.IssueAccount(coordinator, time.Minute)
		require.NoError(t, err)
		_, err = a.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		owner, err := a.ValidateAccount(token)
		require.NoError(t, err)
		assert.Equal(t, coordinator, owner)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Validate("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestRequireCaller(t *testing.T) {
	a := New("test-secret", "test-oracle")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen common.Address
	h := RequireCaller(a, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/oracle/fulfillments", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token sets caller", func(t *testing.T) {
		token, err := a.Issue(coordinator, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/oracle/fulfillments", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, coordinator, seen)
	})
}

func TestRequireAccountOwner(t *testing.T) {
	a := New("test-secret", "test-oracle")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	owner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	stranger := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")

	r := chi.NewRouter()
	r.With(RequireAccountOwner(a, logger, "address")).Put("/accounts/{address}/payable", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, owner, requestcontext.Caller(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	})
	put := func(token string) int {
		req := httptest.NewRequest(http.MethodPut, "/accounts/"+owner.Hex()+"/payable", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	t.Run("anonymous request", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, put(""))
	})

	t.Run("callback token is not an account token", func(t *testing.T) {
		token, err := a.Issue(owner, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, put(token))
	})

	t.Run("token for another account", func(t *testing.T) {
		token, err := a.IssueAccount(stranger, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, put(token))
	})

	t.Run("owner token", func(t *testing.T) {
		token, err := a.IssueAccount(owner, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, put(token))
	})
}
