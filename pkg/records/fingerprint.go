package records

import (
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

// Fingerprint computes a deterministic 64-bit digest of rows projected onto
// the given column order. Identical inputs always produce the same digest, so
// two pipeline runs over the same snapshot can be compared by a single value.
//
// Values are serialized to a canonical text form before hashing; nil becomes
// "\x00" so that missing is distinguishable from the empty string.
func Fingerprint(rows []Record, columns []string) uint64 {
	h := xxh3.New()
	sep := []byte{0x1f}
	nl := []byte{0x1e}
	for _, r := range rows {
		for _, c := range columns {
			h.Write([]byte(canonicalValue(r[c])))
			h.Write(sep)
		}
		h.Write(nl)
	}
	return h.Sum64()
}

// canonicalValue renders v in a stable textual form independent of Go's
// default formatting quirks (e.g. float noise, time zones).
func canonicalValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "\x00"
	case string:
		return x
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int64:
		return fmt.Sprintf("%d", x)
	case int:
		return fmt.Sprintf("%d", x)
	case float64:
		return fmt.Sprintf("%.6f", x)
	case time.Time:
		return x.UTC().Format("2006-01-02T15:04:05")
	default:
		return fmt.Sprintf("%v", x)
	}
}
