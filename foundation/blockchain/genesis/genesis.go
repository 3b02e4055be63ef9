// Package genesis maintains access to the genesis file and the consensus
// parameters every node on the network has to agree on.
package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/holiman/uint256"
)

// Network identity values used by the default genesis.
const (
	ChainID         = 8888
	NetworkID       = 8888
	BlockTime       = 15 * time.Second
	GasLimit        = 30_000_000
	Decimals        = 18
	MaxSupply       = 42_000_000
	InitialReward   = 50
	HalvingInterval = 210_000
	FeeRateBPS      = 100

	// FoundationAccount receives the seed allocation and every transaction fee.
	FoundationAccount = "0x0F45711A8AB6393A504157F1DF327CED7231987B"

	// FoundationAllocation is the 20% seed allocation in whole coins.
	FoundationAllocation = 8_400_000

	// GenesisMiner is recorded as the beneficiary of block 0.
	GenesisMiner = "0xBLAST0000000000000000000000000000000001"
)

// PoW names the proof of work function and its parameters.
type PoW struct {
	Algorithm  string `json:"algorithm"`   // blasthash or keccak.
	MemorySize int    `json:"memory_size"` // Scratch buffer size in bytes for blasthash.
	Rounds     int    `json:"rounds"`      // Number of mixing rounds for blasthash.
}

// Genesis represents the genesis file.
type Genesis struct {
	Date            time.Time         `json:"date"`
	ChainID         uint64            `json:"chain_id"`         // The chain id represents an unique id for this running instance.
	NetworkID       uint64            `json:"network_id"`       // Reported by net_version.
	BlockTime       uint64            `json:"block_time"`       // Target block interval in seconds.
	GasLimit        uint64            `json:"gas_limit"`        // Informational, there is no execution.
	Decimals        uint8             `json:"decimals"`         // Number of base units per coin as a power of 10.
	MaxSupply       uint64            `json:"max_supply"`       // Whole coins.
	Difficulty      uint              `json:"difficulty"`       // Starting number of leading zero hex digits.
	InitialReward   uint64            `json:"initial_reward"`   // Whole coins paid for block 0 era.
	HalvingInterval uint64            `json:"halving_interval"` // Blocks between reward halvings.
	FeeRateBPS      uint64            `json:"fee_rate_bps"`     // Transaction fee in basis points of the amount.
	FeeRecipient    string            `json:"fee_recipient"`    // Account credited with every fee.
	Miner           string            `json:"miner"`            // Beneficiary recorded on block 0.
	PoW             PoW               `json:"pow"`
	Balances        map[string]uint64 `json:"balances"` // Whole coins.
}

// Default returns the genesis of the BLAST main network.
func Default() Genesis {
	return Genesis{
		Date:            time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:         ChainID,
		NetworkID:       NetworkID,
		BlockTime:       uint64(BlockTime / time.Second),
		GasLimit:        GasLimit,
		Decimals:        Decimals,
		MaxSupply:       MaxSupply,
		Difficulty:      1,
		InitialReward:   InitialReward,
		HalvingInterval: HalvingInterval,
		FeeRateBPS:      FeeRateBPS,
		FeeRecipient:    FoundationAccount,
		Miner:           GenesisMiner,
		PoW: PoW{
			Algorithm:  "blasthash",
			MemorySize: 128 * 1024 * 1024,
			Rounds:     64,
		},
		Balances: map[string]uint64{
			FoundationAccount: FoundationAllocation,
		},
	}
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	err = json.Unmarshal(content, &genesis)
	if err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, fmt.Errorf("genesis %s: %w", path, err)
	}

	return genesis, nil
}

// Limits on the consensus parameters. 10^77 is the largest power of ten a
// 256 bit amount holds and 64 hex digits make up a digest.
const (
	maxDecimals   = 77
	maxDifficulty = 64
)

// Validate checks the consensus parameters are usable.
func (g Genesis) Validate() error {
	switch {
	case g.BlockTime == 0:
		return errors.New("block time must be greater than zero")
	case g.HalvingInterval == 0:
		return errors.New("halving interval must be greater than zero")
	case g.Difficulty == 0:
		return errors.New("difficulty must be greater than zero")
	case g.Difficulty > maxDifficulty:
		return fmt.Errorf("difficulty %d is over %d", g.Difficulty, maxDifficulty)
	case g.Decimals > maxDecimals:
		return fmt.Errorf("decimals %d is over %d", g.Decimals, maxDecimals)
	case g.FeeRateBPS > 10_000:
		return fmt.Errorf("fee rate %d bps is over 100%%", g.FeeRateBPS)
	case g.FeeRecipient == "":
		return errors.New("fee recipient is required")
	}

	return nil
}

// =============================================================================

// Coin returns the number of base units in one whole coin.
func (g Genesis) Coin() *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(g.Decimals)))
}

// ToBaseUnits converts whole coins into base units.
func (g Genesis) ToBaseUnits(coins uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(coins), g.Coin())
}

// BlockReward returns the reward paid for the block mined on top of a chain
// of the specified length. The reward halves every HalvingInterval blocks
// and reaches zero once the shift exhausts the base units.
func (g Genesis) BlockReward(chainLength uint64) *uint256.Int {
	era := chainLength / g.HalvingInterval
	if era >= 256 {
		return new(uint256.Int)
	}

	return new(uint256.Int).Rsh(g.ToBaseUnits(g.InitialReward), uint(era))
}

// Fee returns the fee charged on top of the specified amount.
func (g Genesis) Fee(amount *uint256.Int) *uint256.Int {
	fee, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(g.FeeRateBPS))
	if overflow {
		// amount/10000*bps can't overflow and loses at most the sub-bps remainder.
		fee.Div(amount, uint256.NewInt(10_000))
		return fee.Mul(fee, uint256.NewInt(g.FeeRateBPS))
	}

	return fee.Div(fee, uint256.NewInt(10_000))
}
