package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type NumberState int

const (
	NumberOK NumberState = iota
	NumberAbsent
	NumberInvalid
)

func (s NumberState) String() string {
	switch s {
	case NumberOK:
		return "ok"
	case NumberAbsent:
		return "absent"
	default:
		return "invalid"
	}
}

// ParsedNumber keeps apart "zero because empty" and "zero because garbage",
// which CleanCurrency folds together.
type ParsedNumber struct {
	Value float64
	State NumberState
}

var (
	currencyPrefix = regexp.MustCompile(`(?i)^(rp\.?|idr|\$)`)
	trailingDash   = regexp.MustCompile(`[.,]-+$`)
	twoDecimals    = regexp.MustCompile(`^\d{2}$`)
)

// CleanCurrency never fails: anything it cannot read becomes 0.
func CleanCurrency(v any) float64 {
	return ParseNumber(v).Value
}

func ParseNumber(v any) ParsedNumber {
	switch n := v.(type) {
	case nil:
		return ParsedNumber{State: NumberAbsent}
	case float64:
		return fromFloat(n)
	case float32:
		return fromFloat(float64(n))
	case int:
		return ParsedNumber{Value: float64(n)}
	case int64:
		return ParsedNumber{Value: float64(n)}
	case int32:
		return ParsedNumber{Value: float64(n)}
	case uint:
		return ParsedNumber{Value: float64(n)}
	case uint64:
		return ParsedNumber{Value: float64(n)}
	case string:
		return ParseNumberString(n)
	case *string:
		if n == nil {
			return ParsedNumber{State: NumberAbsent}
		}
		return ParseNumberString(*n)
	default:
		return ParsedNumber{State: NumberInvalid}
	}
}

func ParseNumberString(input string) ParsedNumber {
	token := NormalizeNumberToken(input)
	if token == "" {
		if strings.TrimSpace(input) == "" {
			return ParsedNumber{State: NumberAbsent}
		}
		return ParsedNumber{State: NumberInvalid}
	}
	parsed, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return ParsedNumber{State: NumberInvalid}
	}
	return fromFloat(parsed)
}

// NormalizeNumberToken rewrites a currency/number token into a form
// strconv.ParseFloat understands. Separator rules:
//   - both '.' and ',': the last one is the decimal separator
//   - only ',': decimal when exactly two digits follow the last comma
//   - only '.' or none: unchanged
func NormalizeNumberToken(input string) string {
	s := strings.Trim(strings.TrimSpace(input), `"'`)
	s = currencyPrefix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Join(strings.Fields(s), "")
	s = trailingDash.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			whole := strings.NewReplacer(".", "", ",", "").Replace(s[:lastComma])
			s = whole + "." + s[lastComma+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if twoDecimals.MatchString(s[lastComma+1:]) {
			s = strings.ReplaceAll(s[:lastComma], ",", "") + "." + s[lastComma+1:]
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	return s
}

func fromFloat(v float64) ParsedNumber {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ParsedNumber{State: NumberInvalid}
	}
	return ParsedNumber{Value: v}
}
