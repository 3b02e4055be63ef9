package genesis_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/blastnetwork/blast/foundation/blockchain/genesis"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_BlockReward(t *testing.T) {
	gen := genesis.Default()
	gen.HalvingInterval = 4

	t.Log("Given the need to halve the block reward on a fixed interval.")
	{
		first := gen.BlockReward(0)
		if !first.Eq(gen.ToBaseUnits(50)) {
			t.Fatalf("\t%s\tShould pay the initial reward at height 0: got %s", failed, first.Dec())
		}
		t.Logf("\t%s\tShould pay the initial reward at height 0.", success)

		half := gen.BlockReward(gen.HalvingInterval)
		exp := new(uint256.Int).Rsh(first, 1)
		if !half.Eq(exp) {
			t.Fatalf("\t%s\tShould pay half the reward at the halving height: got %s exp %s", failed, half.Dec(), exp.Dec())
		}
		t.Logf("\t%s\tShould pay half the reward at the halving height.", success)

		prev := gen.BlockReward(0)
		for height := uint64(1); height < 1000; height++ {
			reward := gen.BlockReward(height)
			if reward.Gt(prev) {
				t.Fatalf("\t%s\tShould never increase the reward: height %d", failed, height)
			}
			prev = reward
		}
		t.Logf("\t%s\tShould never increase the reward.", success)

		if !gen.BlockReward(gen.HalvingInterval * 300).IsZero() {
			t.Fatalf("\t%s\tShould reach zero once the base units are exhausted.", failed)
		}
		t.Logf("\t%s\tShould reach zero once the base units are exhausted.", success)
	}
}

func Test_Fee(t *testing.T) {
	type table struct {
		name   string
		bps    uint64
		amount uint64
		fee    uint64
	}

	tt := []table{
		{name: "one-percent", bps: 100, amount: 100, fee: 1},
		{name: "truncated", bps: 100, amount: 199, fee: 1},
		{name: "zero-amount", bps: 100, amount: 0, fee: 0},
		{name: "free", bps: 0, amount: 5000, fee: 0},
	}

	t.Log("Given the need to compute transaction fees in base units.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				gen := genesis.Default()
				gen.FeeRateBPS = tst.bps

				fee := gen.Fee(uint256.NewInt(tst.amount))
				if fee.Uint64() != tst.fee {
					t.Fatalf("\t%s\tTest %d:\tShould compute the fee: got %d exp %d", failed, testID, fee.Uint64(), tst.fee)
				}
				t.Logf("\t%s\tTest %d:\tShould compute the fee.", success, testID)
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Load(t *testing.T) {
	t.Log("Given the need to load a genesis file from disk.")
	{
		gen := genesis.Default()
		gen.PoW.Algorithm = "keccak"

		data, err := json.Marshal(gen)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to marshal the genesis: %v", failed, err)
		}

		path := filepath.Join(t.TempDir(), "genesis.json")
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatalf("\t%s\tShould be able to write the genesis file: %v", failed, err)
		}

		loaded, err := genesis.Load(path)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to load the genesis file: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to load the genesis file.", success)

		if loaded.ChainID != genesis.ChainID || loaded.PoW.Algorithm != "keccak" {
			t.Fatalf("\t%s\tShould get back the same values: %+v", failed, loaded)
		}
		if loaded.Balances[genesis.FoundationAccount] != genesis.FoundationAllocation {
			t.Fatalf("\t%s\tShould get back the foundation allocation.", failed)
		}
		t.Logf("\t%s\tShould get back the same values.", success)

		gen.HalvingInterval = 0
		data, _ = json.Marshal(gen)
		os.WriteFile(path, data, 0600)
		if _, err := genesis.Load(path); err == nil {
			t.Fatalf("\t%s\tShould reject a zero halving interval.", failed)
		}
		t.Logf("\t%s\tShould reject a zero halving interval.", success)
	}
}

func Test_Validate(t *testing.T) {
	type table struct {
		name   string
		modify func(gen *genesis.Genesis)
		valid  bool
	}

	tt := []table{
		{name: "default", modify: func(gen *genesis.Genesis) {}, valid: true},
		{name: "maxdifficulty", modify: func(gen *genesis.Genesis) { gen.Difficulty = 64 }, valid: true},
		{name: "overdifficulty", modify: func(gen *genesis.Genesis) { gen.Difficulty = 65 }, valid: false},
		{name: "maxdecimals", modify: func(gen *genesis.Genesis) { gen.Decimals = 77 }, valid: true},
		{name: "overdecimals", modify: func(gen *genesis.Genesis) { gen.Decimals = 78 }, valid: false},
		{name: "overfee", modify: func(gen *genesis.Genesis) { gen.FeeRateBPS = 10_001 }, valid: false},
	}

	t.Log("Given the need to reject unusable consensus parameters.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				gen := genesis.Default()
				tst.modify(&gen)

				err := gen.Validate()
				if (err == nil) != tst.valid {
					t.Fatalf("\t%s\tTest %d:\tShould get valid=%t: %v", failed, testID, tst.valid, err)
				}
				t.Logf("\t%s\tTest %d:\tShould get valid=%t.", success, testID, tst.valid)
			}

			t.Run(tst.name, f)
		}
	}
}
