// Package normalize turns the provider's loosely typed attribute bag into a
// stock_details row with a fixed schema.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"github.com/kjannette/quotesync/internal/models"
)

// Normalize coerces every column in Fields from raw and stamps updated_at with now.
// Missing or malformed values become invalid nulls; it never fails.
func Normalize(raw map[string]any, now time.Time) models.Record {
	out := make(models.Record, len(Fields)+2)
	for _, f := range Fields {
		out[f.Column] = Coerce(raw[f.Source], f.Kind)
	}

	price := String(raw, "currentPrice")
	if !price.Valid {
		price = String(raw, "regularMarketPrice")
	}
	out[ColumnCurrentPrice] = price
	out[ColumnUpdatedAt] = now

	return out
}

// Coerce converts v to the null type matching kind.
func Coerce(v any, kind Kind) any {
	switch kind {
	case KindInt:
		return toInt(v)
	case KindFloat:
		return toFloat(v)
	case KindString:
		return toString(v)
	case KindBool:
		return toBool(v)
	}
	return nil
}

// Float reads key from raw with the float coercion rules.
func Float(raw map[string]any, key string) null.Float {
	return toFloat(raw[key])
}

func Int(raw map[string]any, key string) null.Int {
	return toInt(raw[key])
}

func String(raw map[string]any, key string) null.String {
	return toString(raw[key])
}

func missing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// number parses the numeric kinds through float64, the way integer columns
// accept values such as "123.0".
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case bool:
		if n {
			f = 1
		}
	case json.Number:
		p, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func toInt(v any) null.Int {
	if missing(v) {
		return null.Int{}
	}
	// exact path for integers that would lose precision through float64
	switch n := v.(type) {
	case int64:
		return null.IntFrom(n)
	case int:
		return null.IntFrom(int64(n))
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return null.IntFrom(i)
		}
	}
	f, ok := number(v)
	if !ok || f >= math.MaxInt64 || f < math.MinInt64 {
		return null.Int{}
	}
	return null.IntFrom(int64(math.Trunc(f)))
}

func toFloat(v any) null.Float {
	if missing(v) {
		return null.Float{}
	}
	f, ok := number(v)
	if !ok {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

func toString(v any) null.String {
	if missing(v) {
		return null.String{}
	}
	switch s := v.(type) {
	case string:
		return null.StringFrom(s)
	case json.Number:
		return null.StringFrom(s.String())
	case float64:
		return null.StringFrom(strconv.FormatFloat(s, 'f', -1, 64))
	case float32:
		return null.StringFrom(strconv.FormatFloat(float64(s), 'f', -1, 32))
	case bool:
		return null.StringFrom(strconv.FormatBool(s))
	}
	return null.StringFrom(fmt.Sprint(v))
}

func toBool(v any) null.Bool {
	if missing(v) {
		return null.Bool{}
	}
	switch b := v.(type) {
	case bool:
		return null.BoolFrom(b)
	case string:
		return null.BoolFrom(true) // non-empty string
	case []any:
		return null.BoolFrom(len(b) > 0)
	case map[string]any:
		return null.BoolFrom(len(b) > 0)
	}
	if f, ok := number(v); ok {
		return null.BoolFrom(f != 0)
	}
	return null.BoolFrom(true)
}
