package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aragon/zkvote-node/receipts"
	"github.com/aragon/zkvote-node/test"
	"github.com/aragon/zkvote-node/types"
	"github.com/aragon/zkvote-node/verifier"
	"github.com/aragon/zkvote-node/voting"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
)

const adminHex = "0x00000000000000000000000000000000000000aA"

func TestLoadConfig(t *testing.T) {
	c := qt.New(t)

	cfg, err := loadConfig([]string{"--admin", adminHex, "-p", "9000",
		"--verifier.type", "circom", "--verifier.vkey", "/tmp/vk.json", "-d", "/tmp/zk"})
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Admin, qt.Equals, adminHex)
	c.Assert(cfg.API.Port, qt.Equals, 9000)
	c.Assert(cfg.API.Host, qt.Equals, defaultAPIHost)
	c.Assert(cfg.Verifier.Type, qt.Equals, verifierCircom)
	c.Assert(cfg.Verifier.VKey, qt.Equals, "/tmp/vk.json")
	c.Assert(cfg.Verifier.Accept, qt.IsTrue)
	c.Assert(cfg.Datadir, qt.Equals, "/tmp/zk")
	c.Assert(cfg.Log.Level, qt.Equals, defaultLogLevel)
	c.Assert(cfg.Log.Output, qt.Equals, defaultLogOutput)
	c.Assert(cfg.Web3.RPC, qt.Equals, "")
	c.Assert(validateConfig(cfg), qt.IsNil)

	_, err = loadConfig([]string{"--unknown"})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestLoadConfigFromEnv(t *testing.T) {
	c := qt.New(t)

	t.Setenv("ZKVOTE_ADMIN", adminHex)
	t.Setenv("ZKVOTE_API_PORT", "9100")
	t.Setenv("ZKVOTE_LOG_LEVEL", "debug")
	t.Setenv("ZKVOTE_VERIFIER_TYPE", "stub")
	t.Setenv("ZKVOTE_VERIFIER_ACCEPT", "false")
	t.Setenv("ZKVOTE_WEB3_RPC", "http://127.0.0.1:8545")

	cfg, err := loadConfig(nil)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Admin, qt.Equals, adminHex)
	c.Assert(cfg.API.Port, qt.Equals, 9100)
	c.Assert(cfg.Log.Level, qt.Equals, "debug")
	c.Assert(cfg.Verifier.Type, qt.Equals, verifierStub)
	c.Assert(cfg.Verifier.Accept, qt.IsFalse)
	c.Assert(cfg.Web3.RPC, qt.Equals, "http://127.0.0.1:8545")
	c.Assert(validateConfig(cfg), qt.IsNil)

	// flags have precedence over the environment
	cfg, err = loadConfig([]string{"--api.port", "9200"})
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.API.Port, qt.Equals, 9200)
}

func TestValidateConfig(t *testing.T) {
	c := qt.New(t)

	valid := func() *Config {
		return &Config{
			Datadir:  c.TempDir(),
			Admin:    adminHex,
			API:      APIConfig{Host: defaultAPIHost, Port: defaultAPIPort},
			Verifier: VerifierConfig{Type: verifierGroth16, VKey: "vk.bin"},
		}
	}
	c.Assert(validateConfig(valid()), qt.IsNil)

	cfg := valid()
	cfg.Admin = ""
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `invalid admin address "".*`)
	cfg.Admin = "0x1234"
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `invalid admin address "0x1234".*`)
	cfg.Admin = common.Address{}.Hex()
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "admin address can not be the zero address")

	cfg = valid()
	cfg.API.Port = 0
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "invalid API port 0")
	cfg.API.Port = 65536
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "invalid API port 65536")

	cfg = valid()
	cfg.Verifier.VKey = ""
	c.Assert(validateConfig(cfg), qt.ErrorMatches,
		"circuit verification key path is required for the groth16 verifier")
	cfg.Verifier.Type = verifierCircom
	c.Assert(validateConfig(cfg), qt.ErrorMatches,
		"circuit verification key path is required for the circom verifier")
	cfg.Verifier.Type = verifierStub
	c.Assert(validateConfig(cfg), qt.IsNil)
	cfg.Verifier.Type = "plonk"
	c.Assert(validateConfig(cfg), qt.ErrorMatches, `invalid verifier type "plonk".*`)

	cfg = valid()
	cfg.Datadir = ""
	c.Assert(validateConfig(cfg), qt.ErrorMatches, "datadir is required")
}

func TestNewVerifier(t *testing.T) {
	c := qt.New(t)

	v, err := newVerifier(VerifierConfig{Type: verifierStub, Accept: false})
	c.Assert(err, qt.IsNil)
	c.Assert(v.Verify(nil, nil), qt.Equals, verifier.ErrProofRejected)

	_, err = newVerifier(VerifierConfig{Type: "plonk"})
	c.Assert(err, qt.ErrorMatches, `invalid verifier type "plonk"`)

	_, err = newVerifier(VerifierConfig{Type: verifierGroth16,
		VKey: filepath.Join(c.TempDir(), "missing")})
	c.Assert(err, qt.Not(qt.IsNil))

	prover := test.NewProver(c)
	vote := prover.GenVote(c, 1)
	dir := c.TempDir()

	gnarkPath := filepath.Join(dir, "vk.bin")
	c.Assert(os.WriteFile(gnarkPath, prover.VerifyingKeyBytes(c), 0o600), qt.IsNil)
	v, err = newVerifier(VerifierConfig{Type: verifierGroth16, VKey: gnarkPath})
	c.Assert(err, qt.IsNil)
	c.Assert(v.Verify(vote.Proof, vote.PublicSignals), qt.IsNil)

	circomPath := filepath.Join(dir, "vk.json")
	c.Assert(os.WriteFile(circomPath, prover.CircomVerificationKey(c), 0o600), qt.IsNil)
	v, err = newVerifier(VerifierConfig{Type: verifierCircom, VKey: circomPath})
	c.Assert(err, qt.IsNil)
	c.Assert(v.Verify(vote.Proof, vote.PublicSignals), qt.IsNil)

	// a gnark key is not a snarkjs key
	_, err = newVerifier(VerifierConfig{Type: verifierCircom, VKey: gnarkPath})
	c.Assert(err, qt.ErrorMatches, "can not load verification key .*")
}

func TestProcessEvents(t *testing.T) {
	c := qt.New(t)

	admin := common.HexToAddress(adminHex)
	now := uint64(1700000000)
	sqlite := test.NewSQLite(c)
	m, err := voting.New(voting.Options{
		Admin:    admin,
		SQLite:   sqlite,
		Verifier: verifier.NewStub(true),
		Clock:    test.NewClock(now),
	})
	c.Assert(err, qt.IsNil)
	rcpts, err := receipts.New(receipts.Options{DB: metadb.NewTest(c.TB), SQLite: sqlite})
	c.Assert(err, qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan types.Event, eventsBufferSize)
	sub := m.SubscribeEvents(events)
	done := make(chan error)
	go func() { done <- processEvents(ctx, sub, events, rcpts) }()

	id, err := m.CreateVotingSession(admin, "s", now-1, now+10, 2)
	c.Assert(err, qt.IsNil)
	nullifiers := test.GenNullifiers(c, 3)
	for _, n := range nullifiers {
		err := m.CastVote(id, 1, n, &types.Proof{}, nil)
		c.Assert(err, qt.IsNil)
	}

	// the receipts are synced by the events, and on demand
	deadline := time.Now().Add(5 * time.Second)
	for len(events) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	info, err := rcpts.Info(id)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Size, qt.Equals, uint64(3))

	cancel()
	c.Assert(<-done, qt.IsNil)

	// once stopped, announcements do not block the Manager
	for i := 0; i < eventsBufferSize+1; i++ {
		_, err := m.CreateVotingSession(admin, "s", now, now+10, 2)
		c.Assert(err, qt.IsNil)
	}
	m.Close()
}
