package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vrfraffle/internal/oracle/auth"
	"vrfraffle/internal/oracle/mock"
	"vrfraffle/internal/platform/config"
	"vrfraffle/internal/raffle/models"
	"vrfraffle/internal/raffle/service"
	"vrfraffle/internal/raffle/store/memory"
	"vrfraffle/pkg/requestcontext"
	"vrfraffle/pkg/testutil"
)

type ServerSuite struct {
	suite.Suite
	cfg    config.Config
	oracle *mock.Coordinator
	router http.Handler
	health error
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.T().Setenv("RAFFLE_NETWORK", "31337")
	s.T().Setenv("ORACLE_CALLBACK_SECRET", "server-test-secret")
	cfg, err := config.FromEnv()
	s.Require().NoError(err)
	s.cfg = cfg
	s.health = nil

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	s.oracle = mock.New(cfg.Network.Coordinator, mockBaseFee, mock.WithLogger(logger))
	svc, err := service.New(memory.New(), s.oracle, cfg.RaffleAddress, service.WithLogger(logger))
	s.Require().NoError(err)
	subID, err := bootstrapMock(ctx, s.oracle, svc, cfg)
	s.Require().NoError(err)

	// Deploy in the past so the interval has already elapsed.
	_, err = svc.Deploy(requestcontext.WithTime(ctx, time.Now().Add(-time.Hour)), service.DeployParams{
		EntranceFee: cfg.Network.EntranceFee,
		Interval:    cfg.Network.Interval,
		Oracle: models.OracleBinding{
			Coordinator:          cfg.Network.Coordinator,
			GasLane:              cfg.Network.GasLane,
			SubscriptionID:       subID,
			CallbackGasLimit:     cfg.Network.CallbackGasLimit,
			NumWords:             models.NumWords,
			RequestConfirmations: models.RequestConfirmations,
		},
	})
	s.Require().NoError(err)

	s.router = newRouter(routerDeps{
		cfg:     cfg,
		service: svc,
		logger:  logger,
		reg:     prometheus.NewRegistry(),
		health:  func(context.Context) error { return s.health },
	})
}

func (s *ServerSuite) enter(player string) {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/raffle/entries", models.EnterRequest{
		Player:  player,
		Payment: s.cfg.Network.EntranceFee.String(),
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
}

func (s *ServerSuite) TestFullRoundOverHTTP() {
	const (
		first  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
		second = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	)

	testutil.Given(s.T(), "two players entered", func(t *testing.T) {
		s.enter(first)
		s.enter(second)
	})

	var requestID string
	testutil.When(s.T(), "anyone triggers upkeep", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodPost, "/raffle/upkeep"))
		testutil.AssertStatus(t, rr, http.StatusAccepted)
		requestID = testutil.UnmarshalResponse[models.PerformUpkeepResponse](t, rr).RequestID
		require.Equal(t, "1", requestID)

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/raffle/entries", models.EnterRequest{
			Player:  first,
			Payment: s.cfg.Network.EntranceFee.String(),
		}))
		testutil.AssertStatusAndError(t, rr, http.StatusConflict, "raffle_not_open")
	})

	testutil.Then(s.T(), "the coordinator callback pays the selected player", func(t *testing.T) {
		token, err := auth.New(s.cfg.Oracle.CallbackSecret, s.cfg.Oracle.Issuer).Issue(s.cfg.Network.Coordinator, time.Minute)
		require.NoError(t, err)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/oracle/fulfillments", models.FulfillRequest{
			RequestID:   requestID,
			RandomWords: []string{"3"},
		})
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)

		res := testutil.UnmarshalResponse[models.FulfillResponse](t, rr)
		require.Equal(t, second, res.Winner)

		rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/accounts/"+second))
		pool := new(big.Int).Mul(s.cfg.Network.EntranceFee, big.NewInt(2))
		testutil.AssertJSONContains(t, rr, "balance", pool.String())

		rr = testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/raffle"))
		snap := testutil.UnmarshalResponse[models.Snapshot](t, rr)
		require.Equal(t, "OPEN", snap.State)
		require.Zero(t, snap.NumberOfPlayers)
		require.Equal(t, second, snap.RecentWinner)
	})
}

func (s *ServerSuite) TestFulfillmentFromAnotherSignerIsRejected() {
	s.enter("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/raffle/upkeep"))
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)

	token, err := auth.New(s.cfg.Oracle.CallbackSecret, s.cfg.Oracle.Issuer).Issue(s.cfg.RaffleAddress, time.Minute)
	s.Require().NoError(err)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/oracle/fulfillments", models.FulfillRequest{
		RequestID:   "1",
		RandomWords: []string{"3"},
	})
	req.Header.Set("Authorization", "Bearer "+token)
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")

	// The mock coordinator can still deliver.
	s.Require().NoError(s.oracle.Fulfill(context.Background(), "1"))
}

func (s *ServerSuite) TestPayableChangeNeedsOwnerToken() {
	const player = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	payable := false
	body := models.PayableRequest{Payable: &payable}

	s.enter(player)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/raffle/upkeep"))
	testutil.AssertStatus(s.T(), rr, http.StatusAccepted)

	s.Run("anonymous request is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPut, "/accounts/"+player+"/payable", body))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("coordinator token cannot change an account", func() {
		token, err := auth.New(s.cfg.Oracle.CallbackSecret, s.cfg.Oracle.Issuer).Issue(s.cfg.Network.Coordinator, time.Minute)
		s.Require().NoError(err)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/accounts/"+player+"/payable", body)
		req.Header.Set("Authorization", "Bearer "+token)
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized)
	})

	s.Run("the pending draw still pays out", func() {
		s.Require().NoError(s.oracle.Fulfill(context.Background(), "1"))

		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/raffle"))
		snap := testutil.UnmarshalResponse[models.Snapshot](s.T(), rr)
		s.Equal("OPEN", snap.State)
		s.Equal(player, snap.RecentWinner)
	})

	s.Run("the owner may opt out", func() {
		token, err := auth.New(s.cfg.Oracle.CallbackSecret, s.cfg.Oracle.Issuer).IssueAccount(common.HexToAddress(player), time.Minute)
		s.Require().NoError(err)
		req := testutil.NewJSONRequest(s.T(), http.MethodPut, "/accounts/"+player+"/payable", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "payable", false)
	})
}

func (s *ServerSuite) TestOps() {
	s.Run("healthz", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("healthz reports store failures", func() {
		s.health = errors.New("connection refused")
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "unavailable")
	})

	s.Run("metrics", func() {
		testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/raffle"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(s.T(), rr)
		s.Contains(rr.Body.String(), "raffle_http_requests_total")
	})
}
