package testutil

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vrfraffle/pkg/requestcontext"
)

// WithCaller marks the request as delivered by caller, as the callback auth
// middleware would after validating its token.
func WithCaller(req *http.Request, caller common.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}

// WithTime pins the request clock, letting tests step past the raffle interval.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithRequestID sets the request id the logging middleware would assign.
func WithRequestID(req *http.Request, id string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), id))
}
