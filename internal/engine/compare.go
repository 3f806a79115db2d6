package engine

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/unicode/norm"

	"github.com/Thox33/sync-tool/internal/schema"
)

// DatetimeTolerance is the largest difference at which two datetimes still
// compare equal. Systems round and shift timestamps differently.
const DatetimeTolerance = 5 * time.Minute

// valuesEqual compares two canonical values of the same field.
// Datetimes are equal within DatetimeTolerance (inclusive), strings are
// compared in Unicode NFC, everything else structurally.
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return false
		}
		d := av.Sub(bv)
		if d < 0 {
			d = -d
		}
		return d <= DatetimeTolerance
	case string:
		bv, ok := b.(string)
		return ok && norm.NFC.String(av) == norm.NFC.String(bv)
	case schema.RichText:
		bv, ok := b.(schema.RichText)
		return ok && norm.NFC.String(av.Value) == norm.NFC.String(bv.Value)
	}
	return cmp.Equal(a, b)
}

// differingFields returns the fields whose values differ, in order.
func differingFields(fields []string, src, dst schema.Record) []string {
	var out []string
	for _, f := range fields {
		if !valuesEqual(src[f], dst[f]) {
			out = append(out, f)
		}
	}
	return out
}
