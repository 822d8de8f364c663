package sqldump

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrBadLiteral reports a literal that ParseLiteral cannot decode.
var ErrBadLiteral = errors.New("unparseable SQL literal")

// EmitLiteral encodes one scalar value as a standalone SQL literal in the
// given dialect. Strings are single-quoted with internal quotes doubled,
// numbers pass through verbatim, nil becomes NULL, and byte slices become
// hex literals so binary values round-trip byte-for-byte.
func EmitLiteral(d Dialect, v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return d.BoolLiteral(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []byte:
		return d.BlobLiteral(val)
	case string:
		return quoteString(val)
	case time.Time:
		// Normalized to UTC; fractional seconds are kept, trailing zeros
		// trimmed.
		return quoteString(val.UTC().Format("2006-01-02 15:04:05.999999999"))
	default:
		return quoteString(fmt.Sprint(val))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ParseLiteral is the logical inverse of EmitLiteral, used to verify the
// escaping round-trip. It accepts the literal forms of every supported
// dialect.
func ParseLiteral(s string) (any, error) {
	switch {
	case s == "NULL":
		return nil, nil
	case s == "TRUE":
		return true, nil
	case s == "FALSE":
		return false, nil
	case strings.HasPrefix(s, "X'") && strings.HasSuffix(s, "'"):
		return hex.DecodeString(s[2 : len(s)-1])
	case strings.HasPrefix(s, `'\x`) && strings.HasSuffix(s, "'::bytea"):
		return hex.DecodeString(s[3 : len(s)-len("'::bytea")])
	case strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") && len(s) >= 2:
		body := s[1 : len(s)-1]
		// Reject quoting that is not fully doubled.
		undoubled := strings.ReplaceAll(body, "''", "")
		if strings.Contains(undoubled, "'") {
			return nil, fmt.Errorf("%q: %w", s, ErrBadLiteral)
		}
		return strings.ReplaceAll(body, "''", "'"), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("%q: %w", s, ErrBadLiteral)
}
