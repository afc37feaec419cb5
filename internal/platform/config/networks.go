package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Network holds the per-chain deployment parameters.
type Network struct {
	ChainID          uint64
	Name             string
	Coordinator      common.Address
	GasLane          common.Hash
	SubscriptionID   uint64
	CallbackGasLimit uint32
	Interval         time.Duration
	EntranceFee      *big.Int
	// Development networks run the in-process mock coordinator.
	Development bool
}

type networkSpec struct {
	name             string
	coordinator      string
	gasLane          string
	subscriptionID   uint64
	callbackGasLimit uint32
	interval         time.Duration
	entranceFeeEther string
	development      bool
}

const (
	ChainSepolia uint64 = 11155111
	ChainHardhat uint64 = 31337
	ChainGanache uint64 = 1337
)

// defaultDeployer is the first well-known development account. On local
// chains it deploys the mock coordinator (nonce 0) and then the raffle
// (nonce 1).
var defaultDeployer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

// devGasLane is any 32-byte value; the mock coordinator ignores it.
const devGasLane = "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c"

var networks = map[uint64]networkSpec{
	ChainSepolia: {
		name:             "sepolia",
		coordinator:      "0x8103B0A8A00be2DDC778e6e7eaa21791Cd364625",
		gasLane:          "0x474e34a077df58807dbe9c96d3c009b23b3c6d0cce433e59bbf5b34f823bc56c",
		subscriptionID:   0,
		callbackGasLimit: 500000,
		interval:         30 * time.Second,
		entranceFeeEther: "0.01",
	},
	ChainHardhat: {
		name:             "hardhat",
		gasLane:          devGasLane,
		callbackGasLimit: 500000,
		interval:         30 * time.Second,
		entranceFeeEther: "0.01",
		development:      true,
	},
	ChainGanache: {
		name:             "localhost",
		gasLane:          devGasLane,
		callbackGasLimit: 500000,
		interval:         30 * time.Second,
		entranceFeeEther: "0.01",
		development:      true,
	},
}

// LookupNetwork returns the parameters for chainID.
func LookupNetwork(chainID uint64) (Network, error) {
	entry, ok := networks[chainID]
	if !ok {
		return Network{}, fmt.Errorf("unsupported network %d", chainID)
	}
	fee, err := ParseEther(entry.entranceFeeEther)
	if err != nil {
		return Network{}, err
	}
	n := Network{
		ChainID:          chainID,
		Name:             entry.name,
		GasLane:          common.HexToHash(entry.gasLane),
		SubscriptionID:   entry.subscriptionID,
		CallbackGasLimit: entry.callbackGasLimit,
		Interval:         entry.interval,
		EntranceFee:      fee,
		Development:      entry.development,
	}
	switch {
	case entry.coordinator != "":
		n.Coordinator = common.HexToAddress(entry.coordinator)
	case entry.development:
		n.Coordinator = crypto.CreateAddress(defaultDeployer, 0)
	}
	return n, nil
}

var weiPerEther = decimal.New(1, 18)

// ParseEther converts a decimal ether amount such as "0.01" to wei.
// Amounts finer than one wei are rejected.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ether amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid ether amount %q: must not be negative", s)
	}
	wei := d.Mul(weiPerEther)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("invalid ether amount %q: finer than one wei", s)
	}
	return wei.BigInt(), nil
}
