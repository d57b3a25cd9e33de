// Copyright 2025 Certen Protocol
//
// Program Store: deployed program definitions and their verifying keys,
// keyed by program id. Durable state lives in a single CometBFT-backed
// key-value database; unlike the Record Store there is no block-scoped
// write buffer, since program deployment does not need spend-before-commit
// visibility semantics.
//
// CONCURRENCY: exactly one goroutine (the worker started by Open) ever
// touches the underlying database, following the same command-channel
// pattern as internal/recordstore.
package programstore

import (
	"bytes"
	"encoding/gob"
	"log"
	"os"

	"github.com/certen/zkvm-validator/internal/kvdb"
)

type opKind int

const (
	opAdd opKind = iota
	opGet
	opExists
	opList
	opClose
)

type command struct {
	kind opKind

	programID string
	program   StoredProgram

	reply chan reply
}

type reply struct {
	err        error
	ok         bool
	program    StoredProgram
	found      bool
	programIDs []string
}

// Store is the Program Store's request/reply handle. The zero value is not
// usable; construct with Open.
type Store struct {
	cmds chan command
	log  *log.Logger
}

// Open starts the store's worker goroutine backed by db, pre-seeding the
// built-in credits.aleo program if it is not already present.
func Open(db kvdb.KV) (*Store, error) {
	s := &Store{
		cmds: make(chan command),
		log:  log.New(os.Stderr, "[ProgramStore] ", log.LstdFlags),
	}
	go s.run(db)

	if err := s.loadCredits(); err != nil {
		return nil, err
	}
	return s, nil
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

// Add stores a new program under programID. Returns ErrProgramExists if the
// id is already present.
func (s *Store) Add(programID string, program StoredProgram) error {
	return s.call(command{kind: opAdd, programID: programID, program: program}).err
}

// Get returns the stored program for programID, or found=false if absent.
func (s *Store) Get(programID string) (StoredProgram, bool, error) {
	r := s.call(command{kind: opGet, programID: programID})
	return r.program, r.found, r.err
}

// Exists reports whether programID is present in the store.
func (s *Store) Exists(programID string) bool {
	return s.call(command{kind: opExists, programID: programID}).ok
}

// ListIDs returns every program id currently deployed, sorted
// lexicographically, used by the ABCI driver to fold program identity into
// the per-block deterministic app hash.
func (s *Store) ListIDs() ([]string, error) {
	r := s.call(command{kind: opList})
	return r.programIDs, r.err
}

// Close stops the worker goroutine. Further calls return ErrStoreClosed.
func (s *Store) Close() error {
	return s.call(command{kind: opClose}).err
}

func (s *Store) loadCredits() error {
	if s.Exists(CreditsProgramID) {
		s.log.Printf("credits program already exists in store")
		return nil
	}
	s.log.Printf("loading credits.aleo as part of program store initialization")
	err := s.Add(CreditsProgramID, creditsProgram())
	if err != nil && err != ErrProgramExists {
		return err
	}
	return nil
}

func (s *Store) run(db kvdb.KV) {
	for c := range s.cmds {
		switch c.kind {
		case opAdd:
			c.reply <- reply{err: s.handleAdd(db, c.programID, c.program)}

		case opGet:
			program, found, err := s.handleGet(db, c.programID)
			c.reply <- reply{program: program, found: found, err: err}

		case opExists:
			has, err := db.Has([]byte(c.programID))
			if err != nil {
				s.log.Printf("durable existence check failed, treating as absent: %v", err)
				has = false
			}
			c.reply <- reply{ok: has}

		case opList:
			ids, err := s.handleList(db)
			c.reply <- reply{programIDs: ids, err: err}

		case opClose:
			c.reply <- reply{}
			close(s.cmds)
			return
		}
	}
}

func (s *Store) handleAdd(db kvdb.KV, programID string, program StoredProgram) error {
	key := []byte(programID)
	has, err := db.Has(key)
	if err != nil {
		s.log.Printf("durable existence check failed, treating as absent: %v", err)
	} else if has {
		return ErrProgramExists
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(program); err != nil {
		return err
	}
	return db.Set(key, buf.Bytes())
}

func (s *Store) handleList(db kvdb.KV) ([]string, error) {
	iter, err := db.Iterator(nil, nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var ids []string
	for ; iter.Valid(); iter.Next() {
		ids = append(ids, string(iter.Key()))
	}
	return ids, iter.Error()
}

func (s *Store) handleGet(db kvdb.KV, programID string) (StoredProgram, bool, error) {
	v, err := db.Get([]byte(programID))
	if err != nil {
		return StoredProgram{}, false, err
	}
	if v == nil {
		return StoredProgram{}, false, nil
	}
	var program StoredProgram
	if err := gob.NewDecoder(bytes.NewReader(v)).Decode(&program); err != nil {
		return StoredProgram{}, false, err
	}
	return program, true, nil
}
