package schema

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

var (
	postcodeRx = regexp.MustCompile(`(?i)^[A-Z]{1,2}\d[A-Z\d]? *\d[A-Z]{2}$`)

	errNotNumber   = errors.New("not a number")
	errOutOfRange  = errors.New("value out of range")
	errNoPattern   = errors.New("value does not match pattern")
	errBadPostcode = errors.New("not a valid postcode")
)

// ValueError describes a cell value that could not be coerced to its
// column type. Kind is the error recorded by cell coercion and Facet the
// finer classification used by element validation.
type ValueError struct {
	Column   string
	Kind     types.ErrorKind
	Facet    types.ErrorKind
	Expected types.ColumnType
	Value    string
	Err      error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("column %s: cannot convert %q to %s: %v", e.Column, e.Value, e.Expected, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

func (c *Column) fail(v string, facet types.ErrorKind, err error) *ValueError {
	kind := types.ErrConversion
	if errors.Is(err, ErrUncategorisedValue) {
		kind = types.ErrUncategorisedValue
	}
	return &ValueError{Column: c.Key, Kind: kind, Facet: facet, Expected: c.colType, Value: v, Err: err}
}

// IsBlank reports whether a raw cell value is empty or whitespace.
func IsBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// Convert coerces a raw cell value to the column's type. Blank values
// convert to the empty string without error; blank policy is enforced
// separately. Already-typed values of the right kind pass through.
func (c *Column) Convert(v any) (any, error) {
	if IsBlank(v) {
		return "", nil
	}
	switch c.colType {
	case types.TypeDate:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	case types.TypeInteger:
		switch x := v.(type) {
		case int64:
			return c.checkRange(float64(x), x, fmt.Sprint(x))
		case int:
			return c.checkRange(float64(x), int64(x), fmt.Sprint(x))
		case float64:
			return c.toInteger(x, fmt.Sprint(x))
		}
	case types.TypeFloat:
		switch x := v.(type) {
		case float64:
			return c.toFloat(x, fmt.Sprint(x))
		case int64:
			return c.toFloat(float64(x), fmt.Sprint(x))
		}
	}
	return c.ConvertString(stringValue(v))
}

// ConvertString coerces a textual cell value.
func (c *Column) ConvertString(raw string) (any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	switch c.colType {
	case types.TypeString:
		return s, nil
	case types.TypePostcode:
		pc, err := NormalisePostcode(s)
		if err != nil {
			return "", c.fail(raw, types.ErrPatternMismatch, err)
		}
		return pc, nil
	case types.TypeRegex:
		for _, r := range c.cellRx {
			if r.FullMatch(s) {
				return s, nil
			}
		}
		return "", c.fail(raw, types.ErrPatternMismatch, fmt.Errorf("%w %v", errNoPattern, c.CellRegex))
	case types.TypeInteger:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", c.fail(raw, types.ErrBadValue, errNotNumber)
		}
		return c.toInteger(f, raw)
	case types.TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", c.fail(raw, types.ErrBadValue, errNotNumber)
		}
		return c.toFloat(f, raw)
	case types.TypeDate:
		t, err := time.Parse(c.layout, s)
		if err != nil {
			return "", c.fail(raw, types.ErrBadValue, fmt.Errorf("expected format %s", c.Date))
		}
		return t, nil
	case types.TypeCategory:
		code, err := c.MatchCategory(s)
		if err != nil {
			return "", c.fail(raw, types.ErrBadValue, err)
		}
		return code, nil
	}
	return "", c.fail(raw, types.ErrOther, fmt.Errorf("column has no type"))
}

func (c *Column) toInteger(f float64, raw string) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", c.fail(raw, types.ErrBadValue, errNotNumber)
	}
	return c.checkRange(f, int64(f), raw)
}

func (c *Column) toFloat(f float64, raw string) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", c.fail(raw, types.ErrBadValue, errNotNumber)
	}
	if c.Numeric != nil && c.Numeric.DecimalPlaces != nil {
		p := math.Pow10(*c.Numeric.DecimalPlaces)
		f = math.Round(f*p) / p
	}
	return c.checkRange(f, f, raw)
}

func (c *Column) checkRange(f float64, out any, raw string) (any, error) {
	if c.Numeric == nil {
		return out, nil
	}
	if c.Numeric.MinValue != nil && f < *c.Numeric.MinValue {
		return "", c.fail(raw, types.ErrOutOfRange, fmt.Errorf("%w: below minimum %v", errOutOfRange, *c.Numeric.MinValue))
	}
	if c.Numeric.MaxValue != nil && f > *c.Numeric.MaxValue {
		return "", c.fail(raw, types.ErrOutOfRange, fmt.Errorf("%w: above maximum %v", errOutOfRange, *c.Numeric.MaxValue))
	}
	return out, nil
}

// NormalisePostcode validates a UK postcode and returns it upper-cased with
// a single space before the inward code.
func NormalisePostcode(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !postcodeRx.MatchString(s) {
		return "", fmt.Errorf("%w: %q", errBadPostcode, s)
	}
	compact := strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	return compact[:len(compact)-3] + " " + compact[len(compact)-3:], nil
}

func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format(time.DateOnly)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
