package repository

import (
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// columnValue unwraps the nullable record types into plain driver values.
func columnValue(v any) any {
	switch x := v.(type) {
	case null.Int:
		if !x.Valid {
			return nil
		}
		return x.Int64
	case null.Float:
		if !x.Valid {
			return nil
		}
		return x.Float64
	case null.String:
		if !x.Valid {
			return nil
		}
		return x.String
	case null.Bool:
		if !x.Valid {
			return nil
		}
		return x.Bool
	case decimal.NullDecimal:
		if !x.Valid {
			return nil
		}
		return x.Decimal.String()
	case decimal.Decimal:
		return x.String()
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}
