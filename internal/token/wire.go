package token

import (
	"errors"
	"strconv"
	"strings"
)

const tokenPrefix = "tok_"

// ErrMalformedToken is returned by ParseToken for any input that isn't a
// byte-exact match of the wire format (spec §6): "tok_" followed by a
// connection name, an underscore-delimited decimal u32 generation, and an
// underscore-delimited decimal u32 index.
var ErrMalformedToken = errors.New("token: malformed token")

// FormatToken renders the canonical wire form of a token.
func FormatToken(connectionName string, generation, index uint32) string {
	var b strings.Builder
	b.Grow(len(tokenPrefix) + len(connectionName) + 22)
	b.WriteString(tokenPrefix)
	b.WriteString(connectionName)
	b.WriteByte('_')
	b.WriteString(strconv.FormatUint(uint64(generation), 10))
	b.WriteByte('_')
	b.WriteString(strconv.FormatUint(uint64(index), 10))
	return b.String()
}

// ParseToken parses a wire-form token, consuming it right-to-left so a
// connection_name containing underscores is never mistaken for part of
// the generation/index suffix.
func ParseToken(tok string) (connectionName string, generation uint32, index uint32, err error) {
	if !strings.HasPrefix(tok, tokenPrefix) {
		return "", 0, 0, ErrMalformedToken
	}
	rest := tok[len(tokenPrefix):]

	lastUS := strings.LastIndexByte(rest, '_')
	if lastUS < 0 {
		return "", 0, 0, ErrMalformedToken
	}
	idxStr := rest[lastUS+1:]
	head := rest[:lastUS]

	secondUS := strings.LastIndexByte(head, '_')
	if secondUS < 0 {
		return "", 0, 0, ErrMalformedToken
	}
	genStr := head[secondUS+1:]
	connName := head[:secondUS]

	if connName == "" || len(connName) > maxConnNameBytes {
		return "", 0, 0, ErrMalformedToken
	}

	gen64, err := strconv.ParseUint(genStr, 10, 32)
	if err != nil {
		return "", 0, 0, ErrMalformedToken
	}
	idx64, err := strconv.ParseUint(idxStr, 10, 32)
	if err != nil {
		return "", 0, 0, ErrMalformedToken
	}

	return connName, uint32(gen64), uint32(idx64), nil
}
