// Package infer derives column dtypes and schema flags from sampled values.
package infer

import (
	"strconv"
	"strings"
	"time"

	"github.com/gear6io/dataagent/server/types"
)

// Storage dtype labels
const (
	DtypeInt64    = "int64"
	DtypeFloat64  = "float64"
	DtypeBool     = "bool"
	DtypeDatetime = "datetime64"
	DtypeString   = "string"
	DtypeObject   = "object"
)

const (
	// SampleValues is how many non-missing values a ColumnInfo carries
	SampleValues = 3
	// DatetimeSampleSize is how many leading string values must parse for a
	// string column to be reported as datetime
	DatetimeSampleSize = 5
)

var missingMarkers = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"#N/A": {},
	"None": {},
}

// IsMissing reports whether a raw text cell denotes a missing value
func IsMissing(s string) bool {
	_, ok := missingMarkers[strings.TrimSpace(s)]
	return ok
}

// IsNumericDtype reports whether dtype holds numbers
func IsNumericDtype(dtype string) bool {
	return dtype == DtypeInt64 || dtype == DtypeFloat64
}

// ParseColumn types a column of raw text cells. Missing markers become nil.
// Candidates are tried in order int64, float64, bool; anything else stays string.
func ParseColumn(raw []string) (string, []any) {
	allInt, allFloat, allBool := true, true, true
	seen := false

	for _, s := range raw {
		if IsMissing(s) {
			continue
		}
		seen = true
		v := strings.TrimSpace(s)
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
	}

	values := make([]any, len(raw))
	if !seen {
		return DtypeObject, values
	}

	var dtype string
	switch {
	case allInt:
		dtype = DtypeInt64
	case allFloat:
		dtype = DtypeFloat64
	case allBool:
		dtype = DtypeBool
	default:
		dtype = DtypeString
	}

	for i, s := range raw {
		if IsMissing(s) {
			continue
		}
		v := strings.TrimSpace(s)
		switch dtype {
		case DtypeInt64:
			n, _ := strconv.ParseInt(v, 10, 64)
			values[i] = n
		case DtypeFloat64:
			f, _ := strconv.ParseFloat(v, 64)
			values[i] = f
		case DtypeBool:
			b, _ := parseBool(v)
			values[i] = b
		default:
			values[i] = s
		}
	}
	return dtype, values
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// DtypeOf labels a column of already typed values. Integers mixed with
// floats widen to float64; any other mix is object.
func DtypeOf(values []any) string {
	dtype := ""
	for _, v := range values {
		var d string
		switch v.(type) {
		case nil:
			continue
		case int64, int, int32:
			d = DtypeInt64
		case float64, float32:
			d = DtypeFloat64
		case bool:
			d = DtypeBool
		case time.Time:
			d = DtypeDatetime
		case string:
			d = DtypeString
		default:
			return DtypeObject
		}
		switch {
		case dtype == "":
			dtype = d
		case dtype == d:
		case IsNumericDtype(dtype) && IsNumericDtype(d):
			dtype = DtypeFloat64
		default:
			return DtypeObject
		}
	}
	if dtype == "" {
		return DtypeObject
	}
	return dtype
}

// Describe builds the ColumnInfo for one column of a sample
func Describe(name, dtype string, values []any) types.ColumnInfo {
	info := types.ColumnInfo{
		Name:         name,
		Dtype:        dtype,
		SampleValues: []string{},
		IsNumeric:    IsNumericDtype(dtype),
		IsDatetime:   dtype == DtypeDatetime,
	}

	for _, v := range values {
		if v == nil {
			continue
		}
		if len(info.SampleValues) == SampleValues {
			break
		}
		info.SampleValues = append(info.SampleValues, types.FormatValue(v))
	}

	if !info.IsDatetime && (dtype == DtypeString || dtype == DtypeObject) {
		info.IsDatetime = LooksLikeDates(values)
	}
	return info
}

// LooksLikeDates reports whether the first DatetimeSampleSize non-missing values
// are all strings that parse as dates. A column with no such values does not.
func LooksLikeDates(values []any) bool {
	checked := 0
	for _, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		if _, ok := ParseTime(s); !ok {
			return false
		}
		checked++
		if checked == DatetimeSampleSize {
			break
		}
	}
	return checked > 0
}

// ClassifySQLType maps a backend column type name onto the schema flags
func ClassifySQLType(typeName string) (isDatetime, isNumeric bool) {
	t := strings.ToLower(typeName)
	isDatetime = strings.Contains(t, "date") || strings.Contains(t, "time")
	for _, marker := range []string{"int", "float", "decimal", "numeric", "real"} {
		if strings.Contains(t, marker) {
			isNumeric = true
			break
		}
	}
	return isDatetime, isNumeric
}
