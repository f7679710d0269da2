package syncer

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"dexIngest/internal/model"
)

// Node is one entity object of a subgraph response page.
type Node map[string]any

func (n Node) lookup(path string) (any, bool) {
	var cur any = map[string]any(n)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Object returns the nested object at path.
func (n Node) Object(path string) (Node, bool) {
	v, ok := n.lookup(path)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return Node(obj), ok
}

// String returns the string at path. JSON numbers are formatted.
func (n Node) String(path string) (string, bool) {
	v, ok := n.lookup(path)
	if !ok {
		return "", false
	}
	switch typed := v.(type) {
	case string:
		return typed, true
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(typed), true
	default:
		return "", false
	}
}

// Int64 returns the integer at path, accepting JSON numbers and numeric strings.
func (n Node) Int64(path string) (int64, bool, error) {
	v, ok := n.lookup(path)
	if !ok {
		return 0, false, nil
	}
	switch typed := v.(type) {
	case float64:
		if typed != math.Trunc(typed) || math.Abs(typed) > math.MaxInt64 {
			return 0, true, fmt.Errorf("not an integer: %v", typed)
		}
		return int64(typed), true, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, true, fmt.Errorf("not an integer: %q", typed)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("unexpected integer type %T", v)
	}
}

// Kind is how a remote field is converted to a column value.
type Kind int

const (
	KindString Kind = iota
	KindAddress
	KindDecimal
	KindInt
	// KindIntOrZero stores 0 for values that do not parse as integers.
	KindIntOrZero
	KindBool
)

func (k Kind) columnType() model.ColumnType {
	switch k {
	case KindDecimal:
		return model.ColumnNumeric
	case KindInt, KindIntOrZero:
		return model.ColumnBigint
	case KindBool:
		return model.ColumnBool
	default:
		return model.ColumnText
	}
}

// Field maps a remote field path to a local column.
type Field struct {
	Column string
	Path   string
	Kind   Kind
}

func (f Field) value(n Node) (any, error) {
	switch f.Kind {
	case KindAddress:
		s, ok := n.String(f.Path)
		if !ok {
			return nil, nil
		}
		return strings.ToLower(s), nil
	case KindDecimal:
		s, ok := n.String(f.Path)
		if !ok {
			return nil, nil
		}
		if _, ok := new(big.Rat).SetString(s); !ok {
			return nil, fmt.Errorf("not a decimal: %q", s)
		}
		return s, nil
	case KindInt:
		i, ok, err := n.Int64(f.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return i, nil
	case KindIntOrZero:
		i, _, err := n.Int64(f.Path)
		if err != nil {
			return int64(0), nil
		}
		return i, nil
	case KindBool:
		v, ok := n.lookup(f.Path)
		if !ok {
			return nil, nil
		}
		switch typed := v.(type) {
		case bool:
			return typed, nil
		case string:
			b, err := strconv.ParseBool(typed)
			if err != nil {
				return nil, fmt.Errorf("not a bool: %q", typed)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("unexpected bool type %T", v)
		}
	default:
		s, ok := n.String(f.Path)
		if !ok {
			return nil, nil
		}
		return s, nil
	}
}
