package sqldump

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralRoundTrip_Strings(t *testing.T) {
	d := sqliteDialect{}
	for _, s := range []string{
		"",
		"plain",
		"O'Brien",
		"''already''quoted''",
		"multi\nline\twith\ttabs",
		"unicode: héllo wörld — ελληνικά",
		`\xdead`, // looks like a bytea hex literal but is text
		`\x`,
		`X'ab'`,
	} {
		got, err := ParseLiteral(EmitLiteral(d, s))
		require.NoError(t, err, s)
		assert.Equal(t, s, got, s)
	}
}

func TestLiteralRoundTrip_Blobs(t *testing.T) {
	blobs := [][]byte{
		{},
		{0x00},
		{0xde, 0xad, 0xbe, 0xef},
		{0x27, 0x27, 0x5c, 0x00, 0xff}, // quotes and backslashes as raw bytes
	}
	for _, d := range []Dialect{sqliteDialect{}, pgDialect{}, mysqlDialect{}} {
		for _, b := range blobs {
			got, err := ParseLiteral(EmitLiteral(d, b))
			require.NoError(t, err)
			assert.Equal(t, b, got, "dialect %s", d.Name())
		}
	}
}

func TestLiteralRoundTrip_Scalars(t *testing.T) {
	d := pgDialect{}

	got, err := ParseLiteral(EmitLiteral(d, nil))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseLiteral(EmitLiteral(d, int64(-42)))
	require.NoError(t, err)
	assert.Equal(t, int64(-42), got)

	got, err = ParseLiteral(EmitLiteral(d, 2.5))
	require.NoError(t, err)
	assert.Equal(t, 2.5, got)

	got, err = ParseLiteral(EmitLiteral(d, true))
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEmitLiteral_DialectConventions(t *testing.T) {
	b := []byte{0xab, 0xcd}
	assert.Equal(t, "X'abcd'", EmitLiteral(sqliteDialect{}, b))
	assert.Equal(t, "X'abcd'", EmitLiteral(mysqlDialect{}, b))
	assert.Equal(t, `'\xabcd'::bytea`, EmitLiteral(pgDialect{}, b))

	assert.Equal(t, "1", EmitLiteral(sqliteDialect{}, true))
	assert.Equal(t, "TRUE", EmitLiteral(pgDialect{}, true))
}

func TestEmitLiteral_TimeKeepsSubSecondPrecision(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	ts := time.Date(2025, 6, 1, 14, 30, 0, 123456000, loc)
	assert.Equal(t, "'2025-06-01 12:30:00.123456'", EmitLiteral(pgDialect{}, ts))

	whole := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "'2025-06-01 14:30:00'", EmitLiteral(pgDialect{}, whole))
}

func TestParseLiteral_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "'unterminated", "'bad'quote'", "not a literal"} {
		_, err := ParseLiteral(s)
		assert.ErrorIs(t, err, ErrBadLiteral, s)
	}
}

func TestTableSet(t *testing.T) {
	all := []string{"users", "orders", "audit", "sessions"}

	// Exclude wins over include.
	assert.Equal(t, []string{"users"},
		tableSet(all, []string{"users", "audit"}, []string{"audit"}))
	// Include restricts to a subset, preserving source order.
	assert.Equal(t, []string{"orders", "sessions"},
		tableSet(all, []string{"sessions", "orders"}, nil))
	// No filters passes everything through.
	assert.Equal(t, all, tableSet(all, nil, nil))
	// Exclude-only removes just its matches.
	assert.Equal(t, []string{"users", "orders", "sessions"},
		tableSet(all, nil, []string{"audit"}))
}
