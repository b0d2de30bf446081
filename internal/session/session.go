// Package session implements the per-session Token Store container (spec
// §4.2, §5 "Shared resources"): one Container is created per agent session
// and owns exactly one token.Store per connection the session has touched,
// plus a generation counter per connection that bounds how long a minted
// token remains eligible for DETERMINISTIC-mode deduplication.
//
// A Container is exclusively owned by the single thread handling requests
// for its session (spec §5) and needs no internal synchronization, mirroring
// the Token Store it wraps.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/brokerdb/sqlguard/internal/catalog"
	"github.com/brokerdb/sqlguard/internal/token"
)

// conn bundles one connection's store with its generation counter. The
// counter starts at zero and only ever increases.
type conn struct {
	store      *token.Store
	generation uint32
}

// Container is one session's complete set of per-connection Token Stores.
// Destroyed when the session ends (spec §3 Sensitive Token entry lifecycle)
// — callers simply drop the last reference; there is no explicit Close.
type Container struct {
	id    string
	conns map[string]*conn
}

// New creates a Container with a fresh opaque session id.
func New() *Container {
	return &Container{id: uuid.NewString(), conns: make(map[string]*conn)}
}

// ID reports the session's opaque identifier.
func (c *Container) ID() string { return c.id }

// GetOrInit returns the Token Store for profile.ConnectionName, creating it
// if this session hasn't opened one for that connection yet (spec §4.2
// get_or_init). A new store starts at generation 0, or keeps the generation
// an earlier BumpGeneration already set. Complexity is linear in the number
// of distinct connections the session has used so far.
func (c *Container) GetOrInit(profile *catalog.Profile) (*token.Store, error) {
	cn, ok := c.conns[profile.ConnectionName]
	if ok && cn.store != nil {
		return cn.store, nil
	}
	s, err := token.New(profile.ConnectionName, profile.Safety.ColumnStrategy)
	if err != nil {
		return nil, err
	}
	if !ok {
		cn = &conn{}
		c.conns[profile.ConnectionName] = cn
	}
	cn.store = s
	return s, nil
}

// Generation reports a connection's current generation counter. It is zero
// for a connection the session has never bumped, including one it has
// never even opened a store for yet.
func (c *Container) Generation(connectionName string) uint32 {
	if cn, ok := c.conns[connectionName]; ok {
		return cn.generation
	}
	return 0
}

// BumpGeneration increments a connection's generation counter. Tokens
// already minted under the prior generation remain stored and still parse
// successfully, but DETERMINISTIC-mode deduplication never matches them
// again — the next create_token call for a previously-seen (col_ref, value)
// pair mints a brand new token rather than returning the old one, and the
// old token's wire form (carrying the stale generation) is what the
// Lifecycle note's "invalidates previously minted tokens" actually means:
// a resubmission of a stale-generation token is rejected by ResolveParam
// below, since its generation no longer matches the connection's current
// counter.
func (c *Container) BumpGeneration(connectionName string) {
	cn, ok := c.conns[connectionName]
	if !ok {
		cn = &conn{}
		c.conns[connectionName] = cn
	}
	cn.generation++
}

// ErrUnknownConnection is returned by ResolveParam when tok names a
// connection this session has no store for.
type ErrUnknownConnection struct {
	ConnectionName string
}

func (e *ErrUnknownConnection) Error() string {
	return fmt.Sprintf("session: no token store for connection %q", e.ConnectionName)
}

// ErrStaleGeneration is returned by ResolveParam when tok was minted under
// a generation the connection has since moved past.
type ErrStaleGeneration struct {
	ConnectionName    string
	TokenGeneration   uint32
	CurrentGeneration uint32
}

func (e *ErrStaleGeneration) Error() string {
	return fmt.Sprintf("session: token generation %d for %q is stale (current generation %d)",
		e.TokenGeneration, e.ConnectionName, e.CurrentGeneration)
}

// ErrUnknownIndex is returned by ResolveParam when tok parses cleanly but
// names an index its store never minted.
type ErrUnknownIndex struct {
	ConnectionName string
	Index          uint32
}

func (e *ErrUnknownIndex) Error() string {
	return fmt.Sprintf("session: %q has no token at index %d", e.ConnectionName, e.Index)
}

// ResolveParam is the request-path counterpart to the result materializer's
// create_token calls: given a token an agent resubmitted as a bound query
// parameter, it resolves back to the stored plaintext (spec "a token found
// in an agent's resubmitted query is substituted back to its stored
// plaintext value before binding"). connectionName is the connection the
// current request is running against; a token minted for a different
// connection is rejected even if its wire form happens to parse, since
// tokens are only resolvable against a store with the same connection
// name (spec §4.2 invariants).
func (c *Container) ResolveParam(connectionName string, tok string) (token.Entry, error) {
	tokConn, generation, index, err := token.ParseToken(tok)
	if err != nil {
		return token.Entry{}, err
	}
	if tokConn != connectionName {
		return token.Entry{}, &ErrUnknownConnection{ConnectionName: tokConn}
	}
	cn, ok := c.conns[connectionName]
	if !ok || cn.store == nil {
		return token.Entry{}, &ErrUnknownConnection{ConnectionName: connectionName}
	}
	if generation != cn.generation {
		return token.Entry{}, &ErrStaleGeneration{
			ConnectionName:    connectionName,
			TokenGeneration:   generation,
			CurrentGeneration: cn.generation,
		}
	}
	entry, ok := cn.store.Get(index)
	if !ok {
		return token.Entry{}, &ErrUnknownIndex{ConnectionName: connectionName, Index: index}
	}
	return entry, nil
}
