// Package token implements the Token Store (spec §3, §4.2): a per-session,
// per-connection container mapping sensitive (column, value) pairs to
// opaque tokens. Writes come exclusively from the post-execution result
// materializer; reads (resolving a token back to its stored plaintext)
// come from the request path when an agent resubmits a token as a bound
// parameter.
package token

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/brokerdb/sqlguard/internal/catalog"
)

// maxConnNameBytes bounds connection_name in the wire format (spec §6).
const maxConnNameBytes = 64

// Entry is one minted token's backing plaintext (spec §3 "Sensitive Token
// entry"). Value is nil and ignored when IsNull is true.
type Entry struct {
	ColRef string
	Value  []byte
	PgOID  uint32
	IsNull bool
}

// Input is what the result materializer hands create_token for one
// sensitive output cell.
type Input struct {
	ColRef string
	Value  []byte
	PgOID  uint32
	IsNull bool
}

type dedupKey struct {
	generation uint32
	hash       uint64
}

// Store owns every token minted for one connection within one session.
// It is exclusively owned by the session's single request-handling
// thread (spec §5) and needs no internal synchronization.
type Store struct {
	connectionName string
	strategy       catalog.ColumnStrategy
	entries        []Entry
	dedup          map[dedupKey]uint32 // DETERMINISTIC mode only
}

// New builds a Store for one connection. strategy is fixed for the
// store's lifetime — it comes from the connection's Policy Catalog
// profile, which is itself immutable.
func New(connectionName string, strategy catalog.ColumnStrategy) (*Store, error) {
	if connectionName == "" || len(connectionName) > maxConnNameBytes {
		return nil, fmt.Errorf("token: connection name must be 1-%d bytes, got %d", maxConnNameBytes, len(connectionName))
	}
	s := &Store{connectionName: connectionName, strategy: strategy}
	if strategy == catalog.StrategyDeterministic {
		s.dedup = make(map[dedupKey]uint32)
	}
	return s, nil
}

// CreateToken mints (or, in DETERMINISTIC mode, reuses) a token for one
// sensitive cell. generation is the session's current counter; tokens
// from a prior generation are never matched by a later one's
// deduplication, so bumping the generation effectively invalidates them
// for matching purposes even though their entries remain stored.
func (s *Store) CreateToken(generation uint32, in Input) string {
	if s.strategy == catalog.StrategyDeterministic {
		key := dedupKey{generation: generation, hash: dedupHash(in.ColRef, in.Value, in.IsNull)}
		if idx, ok := s.dedup[key]; ok {
			return FormatToken(s.connectionName, generation, idx)
		}
		idx := s.append(in)
		s.dedup[key] = idx
		return FormatToken(s.connectionName, generation, idx)
	}
	idx := s.append(in)
	return FormatToken(s.connectionName, generation, idx)
}

func (s *Store) append(in Input) uint32 {
	idx := uint32(len(s.entries))
	var value []byte
	if !in.IsNull {
		value = append([]byte(nil), in.Value...)
	}
	s.entries = append(s.entries, Entry{ColRef: in.ColRef, Value: value, PgOID: in.PgOID, IsNull: in.IsNull})
	return idx
}

// Get returns the entry at index, and whether it exists.
func (s *Store) Get(index uint32) (Entry, bool) {
	if int(index) >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[index], true
}

// ConnectionName reports the connection name this store was built for —
// the value a resolved token's connection_name must byte-exactly match.
func (s *Store) ConnectionName() string { return s.connectionName }

// dedupHash combines a column reference and a value into the seeded,
// non-cryptographic hash DETERMINISTIC mode indexes by. A NUL separator
// between the two inputs prevents a pathological (col_ref, value) pair
// from colliding with a different (shorter col_ref, longer value) split
// of the same concatenated bytes.
func dedupHash(colRef string, value []byte, isNull bool) uint64 {
	h := xxhash.New()
	h.WriteString(colRef)
	h.Write([]byte{0})
	if isNull {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
		h.Write(value)
	}
	return h.Sum64()
}
