// Copyright 2025 Certen Protocol
//
// Record Store: the UTXO half of the ledger. Durable state lives in two
// CometBFT-backed key-value databases — commitment -> ciphertext (the
// unspent set) and serial-number -> sentinel byte (the spent set) — fronted
// by two in-memory buffers that accumulate a block's Add/Spend calls until
// Commit flushes them.
//
// CONCURRENCY: exactly one goroutine (the worker started by Open) ever
// touches durable state or the buffers. Every exported method sends a
// command on a channel and blocks on a per-call reply channel; callers never
// see partial buffer state from a concurrent mutation.
package recordstore

import (
	"bytes"
	"log"
	"os"

	"github.com/certen/zkvm-validator/internal/kvdb"
)

var spentSentinel = []byte{1}

// Entry is a single unspent record as returned by Scan.
type Entry struct {
	Commitment []byte
	Ciphertext []byte
}

type opKind int

const (
	opAdd opKind = iota
	opSpend
	opIsUnspent
	opCommit
	opScan
	opScanSpent
	opClose
)

type command struct {
	kind opKind

	commitment   []byte
	ciphertext   []byte
	serialNumber []byte
	scanFrom     []byte
	scanLimit    int

	reply chan reply
}

type reply struct {
	err     error
	ok      bool
	entries []Entry
	cursor  []byte
	serials [][]byte
}

// Store is the Record Store's request/reply handle. The zero value is not
// usable; construct with Open.
type Store struct {
	cmds chan command
	log  *log.Logger
}

// Open starts the store's worker goroutine backed by the given record and
// spent databases.
func Open(recordsDB, spentDB kvdb.KV) *Store {
	s := &Store{
		cmds: make(chan command),
		log:  log.New(os.Stderr, "[RecordStore] ", log.LstdFlags),
	}
	go s.run(recordsDB, spentDB)
	return s
}

// call sends c to the worker and waits for the reply. Once Close has run the
// command channel is closed and the send panics; that is reported as
// ErrStoreClosed.
func (s *Store) call(c command) (r reply) {
	defer func() {
		if recover() != nil {
			r = reply{err: ErrStoreClosed}
		}
	}()
	c.reply = make(chan reply, 1)
	s.cmds <- c
	return <-c.reply
}

// Add buffers a commitment->ciphertext addition for the current block.
func (s *Store) Add(commitment, ciphertext []byte) error {
	return s.call(command{kind: opAdd, commitment: commitment, ciphertext: ciphertext}).err
}

// Spend buffers a serial number as spent for the current block.
func (s *Store) Spend(serialNumber []byte) error {
	return s.call(command{kind: opSpend, serialNumber: serialNumber}).err
}

// IsUnspent reports whether serialNumber is absent from both durable spent
// state and the current block's spend buffer.
func (s *Store) IsUnspent(serialNumber []byte) bool {
	return s.call(command{kind: opIsUnspent, serialNumber: serialNumber}).ok
}

// Commit flushes the add buffer then the spend buffer into durable state,
// each as its own write batch on its own database, then clears both
// buffers. The two batches are not atomic with respect to each other.
func (s *Store) Commit() error {
	return s.call(command{kind: opCommit}).err
}

// Scan forward-iterates the unspent commitment mapping starting after from
// (nil means from the beginning), returning at most limit entries (0 means
// unlimited) and a cursor for the next call.
func (s *Store) Scan(from []byte, limit int) ([]Entry, []byte, error) {
	r := s.call(command{kind: opScan, scanFrom: from, scanLimit: limit})
	return r.entries, r.cursor, r.err
}

// ScanSpent enumerates the full spent serial-number set.
func (s *Store) ScanSpent() ([][]byte, error) {
	r := s.call(command{kind: opScanSpent})
	return r.serials, r.err
}

// Close stops the worker goroutine. Further calls return ErrStoreClosed.
func (s *Store) Close() error {
	return s.call(command{kind: opClose}).err
}

func (s *Store) run(recordsDB, spentDB kvdb.KV) {
	addBuffer := make(map[string][]byte)
	spendBuffer := make(map[string]struct{})

	for c := range s.cmds {
		switch c.kind {
		case opAdd:
			c.reply <- reply{err: s.handleAdd(recordsDB, addBuffer, c.commitment, c.ciphertext)}

		case opSpend:
			c.reply <- reply{err: s.handleSpend(spentDB, spendBuffer, c.serialNumber)}

		case opIsUnspent:
			c.reply <- reply{ok: s.handleIsUnspent(spentDB, spendBuffer, c.serialNumber)}

		case opCommit:
			err := s.handleCommit(recordsDB, spentDB, addBuffer, spendBuffer)
			addBuffer = make(map[string][]byte)
			spendBuffer = make(map[string]struct{})
			c.reply <- reply{err: err}

		case opScan:
			entries, cursor, err := s.handleScan(recordsDB, c.scanFrom, c.scanLimit)
			c.reply <- reply{entries: entries, cursor: cursor, err: err}

		case opScanSpent:
			serials, err := s.handleScanSpent(spentDB)
			c.reply <- reply{serials: serials, err: err}

		case opClose:
			c.reply <- reply{}
			close(s.cmds)
			return
		}
	}
}

func (s *Store) handleAdd(recordsDB kvdb.KV, addBuffer map[string][]byte, commitment, ciphertext []byte) error {
	key := string(commitment)
	if _, buffered := addBuffer[key]; buffered {
		return ErrDuplicateRecord
	}
	has, err := recordsDB.Has(commitment)
	if err != nil {
		s.log.Printf("durable existence check failed, treating as absent: %v", err)
	} else if has {
		return ErrDuplicateRecord
	}
	addBuffer[key] = append([]byte(nil), ciphertext...)
	return nil
}

func (s *Store) handleSpend(spentDB kvdb.KV, spendBuffer map[string]struct{}, serialNumber []byte) error {
	key := string(serialNumber)
	if _, buffered := spendBuffer[key]; buffered {
		return ErrAlreadySpent
	}
	has, err := spentDB.Has(serialNumber)
	if err != nil {
		s.log.Printf("durable spent check failed, treating as unspent: %v", err)
	} else if has {
		return ErrAlreadySpent
	}
	spendBuffer[key] = struct{}{}
	return nil
}

func (s *Store) handleIsUnspent(spentDB kvdb.KV, spendBuffer map[string]struct{}, serialNumber []byte) bool {
	if _, buffered := spendBuffer[string(serialNumber)]; buffered {
		return false
	}
	has, err := spentDB.Has(serialNumber)
	if err != nil {
		s.log.Printf("durable spent check failed, treating as unspent: %v", err)
		return true
	}
	return !has
}

func (s *Store) handleCommit(recordsDB, spentDB kvdb.KV, addBuffer map[string][]byte, spendBuffer map[string]struct{}) error {
	if len(addBuffer) > 0 {
		batch := recordsDB.NewBatch()
		for k, v := range addBuffer {
			if err := batch.Set([]byte(k), v); err != nil {
				batch.Close()
				return err
			}
		}
		err := batch.WriteSync()
		batch.Close()
		if err != nil {
			// Store-IO errors at commit time are logged and continued,
			// matching the original's best-effort commit behavior.
			s.log.Printf("commit: failed writing add batch: %v", err)
		}
	}

	if len(spendBuffer) > 0 {
		batch := spentDB.NewBatch()
		for k := range spendBuffer {
			if err := batch.Set([]byte(k), spentSentinel); err != nil {
				batch.Close()
				return err
			}
		}
		err := batch.WriteSync()
		batch.Close()
		if err != nil {
			s.log.Printf("commit: failed writing spend batch: %v", err)
		}
	}

	return nil
}

func (s *Store) handleScan(recordsDB kvdb.KV, from []byte, limit int) ([]Entry, []byte, error) {
	iter, err := recordsDB.Iterator(from, nil)
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()

	var entries []Entry
	var cursor []byte
	for ; iter.Valid(); iter.Next() {
		key := iter.Key()
		if from != nil && bytes.Equal(key, from) {
			// from is the cursor returned by the previous call, already seen.
			continue
		}
		if limit > 0 && len(entries) >= limit {
			cursor = append([]byte(nil), entries[len(entries)-1].Commitment...)
			break
		}
		entries = append(entries, Entry{
			Commitment: append([]byte(nil), key...),
			Ciphertext: append([]byte(nil), iter.Value()...),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, nil, err
	}
	return entries, cursor, nil
}

func (s *Store) handleScanSpent(spentDB kvdb.KV) ([][]byte, error) {
	iter, err := spentDB.Iterator(nil, nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out [][]byte
	for ; iter.Valid(); iter.Next() {
		out = append(out, append([]byte(nil), iter.Key()...))
	}
	return out, iter.Error()
}
