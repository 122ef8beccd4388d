// Package receipts maintains, for every voting session, a MerkleTree with
// one leaf per accepted vote, so that a voter can obtain an inclusion proof
// of its vote against a public root. The trees are derived from the
// nullifier ledger and are updated incrementally, never as part of the vote
// commit.
package receipts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aragon/zkvote-node/db"
	"github.com/aragon/zkvote-node/types"
	"github.com/fxamacker/cbor/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vocdoni/arbo"
	kvdb "go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
	"go.vocdoni.io/dvote/log"
)

const (
	treePrefix = "rt_"
	metaPrefix = "rm_"

	// DefaultCacheSize is the default number of session trees kept open
	DefaultCacheSize = 64
	syncBatchSize    = 1000
)

var (
	dbKeyNextIndex = []byte("nextIndex")
	dbKeyLastSeq   = []byte("lastSeq")
	dbKeyNullifier = []byte("n_")

	hashFunction = arbo.HashFunctionPoseidon
)

// ErrReceiptNotFound is returned when there is no accepted vote with the
// given nullifier in the session
var ErrReceiptNotFound = errors.New("receipt not found")

// ErrOutOfSync is returned when the receipts tree of a session holds fewer
// votes than the ledger
var ErrOutOfSync = errors.New("receipts tree behind the ledger")

// record is the value stored for every nullifier of a session
type record struct {
	Index       uint64 `cbor:"index"`
	CandidateID uint64 `cbor:"candidateId"`
}

// Options is used to pass the parameters to load the Receipts
type Options struct {
	// DB is the key-value database that stores the trees
	DB kvdb.Database
	// SQLite is the nullifier ledger the trees are built from
	SQLite *db.SQLite
	// CacheSize is the number of session trees kept open. DefaultCacheSize
	// is used when 0.
	CacheSize int
}

// Receipts contains the receipts MerkleTrees of all the sessions
type Receipts struct {
	mu     sync.Mutex
	kv     kvdb.Database
	sqlite *db.SQLite
	trees  *lru.Cache[uint64, *arbo.Tree]
}

// New loads the Receipts
func New(opts Options) (*Receipts, error) {
	if opts.DB == nil || opts.SQLite == nil {
		return nil, fmt.Errorf("missing database")
	}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	trees, err := lru.New[uint64, *arbo.Tree](size)
	if err != nil {
		return nil, err
	}
	return &Receipts{
		kv:     opts.DB,
		sqlite: opts.SQLite,
		trees:  trees,
	}, nil
}

func sessionPrefix(prefix string, sessionID uint64) []byte {
	b := make([]byte, len(prefix)+8)
	copy(b, prefix)
	binary.BigEndian.PutUint64(b[len(prefix):], sessionID)
	return b
}

func nullifierKey(nullifier []byte) []byte {
	return append(append([]byte{}, dbKeyNullifier...), nullifier...)
}

func getUint64(rTx kvdb.Reader, key []byte) (uint64, error) {
	b, err := rTx.Get(key)
	if errors.Is(err, kvdb.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return types.IndexToUint64(b)
}

func setUint64(wTx kvdb.WriteTx, key []byte, v uint64) error {
	return wTx.Set(key, types.Uint64ToIndex(v))
}

// tree returns the MerkleTree of the session, loading it if needed. The
// session must exist. Must be called with r.mu held.
func (r *Receipts) tree(sessionID uint64) (*arbo.Tree, error) {
	if t, ok := r.trees.Get(sessionID); ok {
		return t, nil
	}
	if _, err := r.sqlite.ReadSession(sessionID); err != nil {
		return nil, err
	}
	t, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(r.kv, sessionPrefix(treePrefix, sessionID)),
		MaxLevels:    types.MaxLevels,
		HashFunction: hashFunction,
	})
	if err != nil {
		return nil, err
	}
	r.trees.Add(sessionID, t)
	return t, nil
}

// Sync adds to the MerkleTree of the session the votes accepted since the
// last Sync, in commit order. Calling it again without new votes is a
// no-op.
func (r *Receipts) Sync(sessionID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.sync(sessionID)
	return err
}

func (r *Receipts) sync(sessionID uint64) (*arbo.Tree, error) {
	t, err := r.tree(sessionID)
	if err != nil {
		return nil, err
	}
	meta := prefixeddb.NewPrefixedReader(r.kv, sessionPrefix(metaPrefix, sessionID))
	lastSeq, err := getUint64(meta, dbKeyLastSeq)
	if err != nil {
		return nil, err
	}
	nextIndex, err := getUint64(meta, dbKeyNextIndex)
	if err != nil {
		return nil, err
	}

	for {
		votes, err := r.sqlite.ReadVotesFromSeq(sessionID, lastSeq, syncBatchSize)
		if err != nil {
			return nil, err
		}
		if len(votes) == 0 {
			return t, nil
		}
		if err := r.addVotes(t, sessionID, nextIndex, votes); err != nil {
			return nil, err
		}
		nextIndex += uint64(len(votes))
		lastSeq = votes[len(votes)-1].Seq
		log.Debugw("receipts synced", "sessionID", sessionID,
			"size", nextIndex, "lastSeq", lastSeq)
	}
}

// addVotes stores the leaves of the given votes and the updated sync
// position in a single transaction
func (r *Receipts) addVotes(t *arbo.Tree, sessionID, nextIndex uint64,
	votes []types.VoteRecord) error {
	wTx := r.kv.WriteTx()
	defer wTx.Discard()
	treeTx := prefixeddb.NewPrefixedWriteTx(wTx, sessionPrefix(treePrefix, sessionID))
	metaTx := prefixeddb.NewPrefixedWriteTx(wTx, sessionPrefix(metaPrefix, sessionID))

	for i, v := range votes {
		index := nextIndex + uint64(i)
		leaf, err := types.HashReceipt(types.BytesToNullifier(v.Nullifier), v.CandidateID)
		if err != nil {
			return err
		}
		if err := t.AddWithTx(treeTx, types.Uint64ToIndex(index), leaf); err != nil {
			return fmt.Errorf("can not add receipt %d: %w", index, err)
		}
		rec, err := cbor.Marshal(record{Index: index, CandidateID: v.CandidateID})
		if err != nil {
			return err
		}
		if err := metaTx.Set(nullifierKey(v.Nullifier), rec); err != nil {
			return err
		}
	}
	if err := setUint64(metaTx, dbKeyNextIndex, nextIndex+uint64(len(votes))); err != nil {
		return err
	}
	if err := setUint64(metaTx, dbKeyLastSeq, votes[len(votes)-1].Seq); err != nil {
		return err
	}
	return wTx.Commit()
}

// Info returns the size and the root of the MerkleTree of the session
func (r *Receipts) Info(sessionID uint64) (*types.ReceiptsInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// votes are only appended, so the synced tree holds at least the votes
	// counted before the sync
	votes, err := r.sqlite.CountVotes(sessionID)
	if err != nil {
		return nil, err
	}
	t, err := r.sync(sessionID)
	if err != nil {
		return nil, err
	}
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	meta := prefixeddb.NewPrefixedReader(r.kv, sessionPrefix(metaPrefix, sessionID))
	size, err := getUint64(meta, dbKeyNextIndex)
	if err != nil {
		return nil, err
	}
	if size < votes {
		return nil, fmt.Errorf("%w: %d receipts, %d votes in session %d",
			ErrOutOfSync, size, votes, sessionID)
	}
	return &types.ReceiptsInfo{SessionID: sessionID, Size: size, Root: root}, nil
}

// Receipt returns the inclusion proof of the vote with the given nullifier
// in the MerkleTree of the session
func (r *Receipts) Receipt(sessionID uint64, nullifier *big.Int) (*types.Receipt, error) {
	nullifierBytes, err := types.NullifierToBytes(nullifier)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.sync(sessionID)
	if err != nil {
		return nil, err
	}
	meta := prefixeddb.NewPrefixedReader(r.kv, sessionPrefix(metaPrefix, sessionID))
	b, err := meta.Get(nullifierKey(nullifierBytes))
	if errors.Is(err, kvdb.ErrKeyNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec record
	if err := cbor.Unmarshal(b, &rec); err != nil {
		return nil, err
	}

	_, _, siblings, existence, err := t.GenProof(types.Uint64ToIndex(rec.Index))
	if err != nil {
		return nil, err
	}
	if !existence {
		return nil, fmt.Errorf("receipt %d missing in the tree of session %d",
			rec.Index, sessionID)
	}
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	return &types.Receipt{
		SessionID:   sessionID,
		Index:       rec.Index,
		Nullifier:   types.NewBigInt(nullifier),
		CandidateID: rec.CandidateID,
		Root:        root,
		Siblings:    siblings,
	}, nil
}

// CheckReceipt checks the MerkleProof of the given Receipt against its root
func CheckReceipt(receipt *types.Receipt) (bool, error) {
	if receipt == nil || receipt.Nullifier == nil {
		return false, fmt.Errorf("missing receipt")
	}
	leaf, err := types.HashReceipt(receipt.Nullifier.MathBigInt(), receipt.CandidateID)
	if err != nil {
		return false, err
	}
	return arbo.CheckProof(hashFunction, types.Uint64ToIndex(receipt.Index), leaf,
		receipt.Root, receipt.Siblings)
}
