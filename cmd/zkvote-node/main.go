package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/aragon/zkvote-node/api"
	"github.com/aragon/zkvote-node/db"
	"github.com/aragon/zkvote-node/eth"
	"github.com/aragon/zkvote-node/receipts"
	"github.com/aragon/zkvote-node/types"
	"github.com/aragon/zkvote-node/verifier"
	"github.com/aragon/zkvote-node/voting"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	_ "github.com/mattn/go-sqlite3"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	kvdb "go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"
)

const eventsBufferSize = 256

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Debugf("config: %+v", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
	log.Infow("zkvote-node stopped")
}

func run(ctx context.Context, cfg *Config) error {
	if err := os.MkdirAll(cfg.Datadir, 0o750); err != nil {
		return err
	}

	// foreign keys are enabled per connection
	sqlDB, err := sql.Open("sqlite3",
		filepath.Join(cfg.Datadir, "zkvote.sqlite3")+"?_foreign_keys=on")
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlite := db.NewSQLite(sqlDB)
	defer sqlite.Close() //nolint:errcheck
	if err := sqlite.Migrate(); err != nil {
		return err
	}

	database, err := metadb.New(kvdb.TypePebble, filepath.Join(cfg.Datadir, "receipts"))
	if err != nil {
		return err
	}
	defer database.Close() //nolint:errcheck

	v, err := newVerifier(cfg.Verifier)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	var clock voting.Clock = voting.SystemClock{}
	if cfg.Web3.RPC != "" {
		blockClock, err := eth.Dial(ctx, cfg.Web3.RPC)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return blockClock.Run(ctx, eth.DefaultPollInterval)
		})
		clock = blockClock
	}

	manager, err := voting.New(voting.Options{
		Admin:    common.HexToAddress(cfg.Admin),
		SQLite:   sqlite,
		Verifier: v,
		Clock:    clock,
	})
	if err != nil {
		return err
	}
	defer manager.Close()

	rcpts, err := receipts.New(receipts.Options{DB: database, SQLite: sqlite})
	if err != nil {
		return err
	}

	a, err := api.New(manager, rcpts)
	if err != nil {
		return err
	}

	events := make(chan types.Event, eventsBufferSize)
	sub := manager.SubscribeEvents(events)
	g.Go(func() error {
		return processEvents(ctx, sub, events, rcpts)
	})
	g.Go(func() error {
		return a.Serve(ctx, net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port)))
	})

	log.Infow("zkvote-node started", "admin", manager.Admin().Hex(),
		"verifier", cfg.Verifier.Type, "datadir", cfg.Datadir)
	return g.Wait()
}

// newVerifier returns the proof verifier selected in the configuration
func newVerifier(cfg VerifierConfig) (verifier.Verifier, error) {
	switch cfg.Type {
	case verifierGroth16:
		f, err := os.Open(cfg.VKey)
		if err != nil {
			return nil, err
		}
		defer f.Close() //nolint:errcheck
		v, err := verifier.LoadGroth16(f)
		if err != nil {
			return nil, fmt.Errorf("can not load verification key %s: %w", cfg.VKey, err)
		}
		return v, nil
	case verifierCircom:
		vkJSON, err := os.ReadFile(cfg.VKey)
		if err != nil {
			return nil, err
		}
		v, err := verifier.NewCircom(vkJSON)
		if err != nil {
			return nil, fmt.Errorf("can not load verification key %s: %w", cfg.VKey, err)
		}
		return v, nil
	case verifierStub:
		log.Warnw("using the stub verifier, proofs are not checked", "accept", cfg.Accept)
		return verifier.NewStub(cfg.Accept), nil
	default:
		return nil, fmt.Errorf("invalid verifier type %q", cfg.Type)
	}
}

// processEvents logs the announcements of the Manager and keeps the
// receipts trees up to date, until the context is done
func processEvents(ctx context.Context, sub event.Subscription,
	events <-chan types.Event, rcpts *receipts.Receipts) error {
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case e := <-events:
			log.Infow("event", "type", e.Type, "sessionID", e.SessionID,
				"candidateID", e.CandidateID, "nullifier", e.Nullifier.String())
			if e.Type != types.EventVoteCast {
				continue
			}
			if err := rcpts.Sync(e.SessionID); err != nil {
				log.Warnw("receipts not synced", "sessionID", e.SessionID, "err", err)
			}
		}
	}
}
