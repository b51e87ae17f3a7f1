package export

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrUnrepresentable is returned for values that have no safe SQLite literal form.
var ErrUnrepresentable = errors.New("value has no SQL literal form")

// Literal renders v as a SQLite literal. Text is single-quoted with embedded
// quotes doubled; it must be valid UTF-8 without NUL bytes since SQLite
// truncates text at NUL.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case int:
		return strconv.Itoa(x), nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", fmt.Errorf("%w: %v", ErrUnrepresentable, x)
		}
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case string:
		if !utf8.ValidString(x) {
			return "", fmt.Errorf("%w: invalid UTF-8 text", ErrUnrepresentable)
		}
		if strings.IndexByte(x, 0) >= 0 {
			return "", fmt.Errorf("%w: text contains NUL", ErrUnrepresentable)
		}
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case []byte:
		return "X'" + hex.EncodeToString(x) + "'", nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrUnrepresentable, v)
	}
}
