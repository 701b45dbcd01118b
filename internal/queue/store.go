package queue

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/Klingon-tech/klingnet-walletd/internal/storage"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// Codec creates an empty payload for each persisted action type.
type Codec map[types.ActionType]func() Payload

// Store persists queue entries. Keys are the big-endian enqueue sequence
// number so iteration yields FIFO order.
type Store struct {
	db    storage.DB
	codec Codec
}

// record is the persisted form of an action.
type record struct {
	Meta    Meta            `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// NewStore creates a store over db. db is usually a storage.PrefixDB
// dedicated to the queue.
func NewStore(db storage.DB, codec Codec) *Store {
	return &Store{db: db, codec: codec}
}

func seqKey(seq uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], seq)
	return k[:]
}

func encodeRecord(a Action) ([]byte, error) {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return json.Marshal(record{Meta: a.Meta, Payload: payload})
}

// Put writes or overwrites an action.
func (s *Store) Put(a Action) error {
	data, err := encodeRecord(a)
	if err != nil {
		return err
	}
	if err := s.db.Put(seqKey(a.Meta.Seq), data); err != nil {
		return fmt.Errorf("store action %s: %w", a.Meta.Hash.Short(), err)
	}
	return nil
}

// Delete removes the action with the given sequence number.
func (s *Store) Delete(seq uint64) error {
	if err := s.db.Delete(seqKey(seq)); err != nil {
		return fmt.Errorf("delete action seq %d: %w", seq, err)
	}
	return nil
}

// Replace deletes oldSeq and writes a in one batch when the backend
// supports batches.
func (s *Store) Replace(oldSeq uint64, a Action) error {
	data, err := encodeRecord(a)
	if err != nil {
		return err
	}
	batcher, ok := s.db.(storage.Batcher)
	if !ok {
		if err := s.Delete(oldSeq); err != nil {
			return err
		}
		return s.db.Put(seqKey(a.Meta.Seq), data)
	}
	b := batcher.NewBatch()
	if err := b.Delete(seqKey(oldSeq)); err != nil {
		return err
	}
	if err := b.Put(seqKey(a.Meta.Seq), data); err != nil {
		return err
	}
	if err := b.Commit(); err != nil {
		return fmt.Errorf("replace action %s: %w", a.Meta.Hash.Short(), err)
	}
	return nil
}

// Load returns all persisted actions in sequence order.
func (s *Store) Load() ([]Action, error) {
	var out []Action
	err := s.db.ForEach(nil, func(key, value []byte) error {
		var rec record
		if err := json.Unmarshal(value, &rec); err != nil {
			return fmt.Errorf("decode action %x: %w", key, err)
		}
		newPayload, ok := s.codec[rec.Meta.Type]
		if !ok {
			return fmt.Errorf("decode action %s: %w: %s", rec.Meta.Hash.Short(), ErrNoExecutor, rec.Meta.Type)
		}
		p := newPayload()
		if err := json.Unmarshal(rec.Payload, p); err != nil {
			return fmt.Errorf("decode payload %s: %w", rec.Meta.Hash.Short(), err)
		}
		out = append(out, Action{Meta: rec.Meta, Payload: p})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
