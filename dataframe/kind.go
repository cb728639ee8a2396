package dataframe

import (
	"strings"

	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/censusml/pkg/errors"
)

// Kind は列の値の種類
type Kind int

const (
	// KindInt は整数列
	KindInt Kind = iota
	// KindFloat は浮動小数点列
	KindFloat
	// KindCategory は文字列値のカテゴリ列
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Numeric reports whether the kind holds numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// ParseKind は種類名（"int", "float", "category"）をKindに変換する
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "int64", "integer":
		return KindInt, nil
	case "float", "float64", "double":
		return KindFloat, nil
	case "category", "string", "str":
		return KindCategory, nil
	default:
		return KindInt, errors.NewValidationError("kind", "must be one of int, float, category", name)
	}
}

func (k Kind) seriesType() series.Type {
	switch k {
	case KindInt:
		return series.Int
	case KindFloat:
		return series.Float
	default:
		return series.String
	}
}

// kindOf maps a gota series type to a Kind. Bool columns are stored as
// int columns, see normalizeBools.
func kindOf(t series.Type) Kind {
	switch t {
	case series.Int, series.Bool:
		return KindInt
	case series.Float:
		return KindFloat
	default:
		return KindCategory
	}
}
