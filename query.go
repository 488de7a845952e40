// MongoDB-style filters over start documents.
//
// A Filter is compiled once into a small tree of nodes and evaluated against
// decoded document fields. The supported subset is what run selection needs:
// field equality, comparison and membership operators, $exists, $regex,
// $size, $all, and the $and/$or/$nor/$not combinators, with dotted paths
// into nested objects and arrays.
//
// Matching follows MongoDB rules where they differ from naive equality:
//
//   - an array field matches a scalar if any element matches;
//   - {field: null} and $ne/$nin match documents without the field;
//   - ordering operators only compare numbers with numbers and strings
//     with strings; any other pairing is simply not a match.
//
// Operands are normalised at compile time (every Go numeric type becomes
// float64, typed slices and string-keyed maps become []any and
// map[string]any), so filters built in Go code and filters decoded from JSON
// or YAML behave the same.
package runlog

import (
	"cmp"
	"fmt"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Filter is a MongoDB-style query document, e.g.
//
//	Filter{"plan_name": "count", "num_points": Filter{"$gte": 10}}
type Filter map[string]any

// Query is a compiled Filter.
type Query struct {
	filter Filter
	root   node
}

type node interface {
	match(doc map[string]any) bool
}

// cond tests the values found at a field path. An empty slice means the
// field is missing.
type cond interface {
	test(vals []any) bool
}

// Compile validates f and builds its evaluation tree. A nil or empty filter
// matches every document.
func Compile(f Filter) (*Query, error) {
	root, err := compile(normalize(map[string]any(f)).(map[string]any))
	if err != nil {
		return nil, err
	}
	return &Query{filter: f, root: root}, nil
}

// Match reports whether fields satisfy f.
func Match(f Filter, fields map[string]any) (bool, error) {
	q, err := Compile(f)
	if err != nil {
		return false, err
	}
	return q.Match(fields), nil
}

// Match reports whether fields satisfy the query.
func (q *Query) Match(fields map[string]any) bool {
	return q.root.match(fields)
}

// Filter returns the filter the query was compiled from.
func (q *Query) Filter() Filter {
	return q.filter
}

// and combines two filters. The result never matches more than either
// input; an empty side is dropped.
func and(a, b Filter) Filter {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	return Filter{"$and": []any{a, b}}
}

func compile(f map[string]any) (node, error) {
	nodes := make(allOf, 0, len(f))
	for _, key := range slices.Sorted(maps.Keys(f)) {
		val := f[key]
		switch key {
		case "$and", "$or", "$nor":
			list, ok := val.([]any)
			if !ok || len(list) == 0 {
				return nil, fmt.Errorf("%w: %s requires a non-empty array", ErrInvalidFilter, key)
			}
			children := make([]node, 0, len(list))
			for _, item := range list {
				sub, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: %s elements must be objects", ErrInvalidFilter, key)
				}
				n, err := compile(sub)
				if err != nil {
					return nil, err
				}
				children = append(children, n)
			}
			switch key {
			case "$and":
				nodes = append(nodes, allOf(children))
			case "$or":
				nodes = append(nodes, anyOf(children))
			default:
				nodes = append(nodes, noneOf(children))
			}
		case "$not":
			sub, ok := val.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: $not requires an object", ErrInvalidFilter)
			}
			n, err := compile(sub)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, not{n})
		default:
			if strings.HasPrefix(key, "$") {
				return nil, fmt.Errorf("%w: unknown operator %s", ErrInvalidFilter, key)
			}
			conds, err := compileField(key, val)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, field{path: strings.Split(key, "."), conds: conds})
		}
	}
	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return nodes, nil
}

// compileField turns the value side of {key: val} into conditions. A plain
// value, or an object without operator keys, is an equality test.
func compileField(key string, val any) ([]cond, error) {
	ops, ok := val.(map[string]any)
	if !ok || !operators(ops) {
		return []cond{eq{val}}, nil
	}

	conds := make([]cond, 0, len(ops))
	for _, op := range slices.Sorted(maps.Keys(ops)) {
		operand := ops[op]
		switch op {
		case "$eq":
			conds = append(conds, eq{operand})
		case "$ne":
			conds = append(conds, negate{eq{operand}})
		case "$gt", "$gte", "$lt", "$lte":
			conds = append(conds, compare{op, operand})
		case "$in", "$nin", "$all":
			list, ok := operand.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s requires an array", ErrInvalidFilter, key, op)
			}
			switch op {
			case "$in":
				conds = append(conds, in(list))
			case "$nin":
				conds = append(conds, negate{in(list)})
			default:
				conds = append(conds, all(list))
			}
		case "$exists":
			want, ok := truthy(operand)
			if !ok {
				return nil, fmt.Errorf("%w: %s.$exists requires a boolean", ErrInvalidFilter, key)
			}
			conds = append(conds, exists(want))
		case "$regex":
			re, err := compileRegex(key, operand, ops["$options"])
			if err != nil {
				return nil, err
			}
			conds = append(conds, match{re})
		case "$options":
			if _, ok := ops["$regex"]; !ok {
				return nil, fmt.Errorf("%w: %s.$options without $regex", ErrInvalidFilter, key)
			}
		case "$size":
			n, ok := operand.(float64)
			if !ok || n < 0 || n != float64(int(n)) {
				return nil, fmt.Errorf("%w: %s.$size requires a non-negative integer", ErrInvalidFilter, key)
			}
			conds = append(conds, length(int(n)))
		case "$not":
			sub, ok := operand.(map[string]any)
			if !ok || !operators(sub) {
				return nil, fmt.Errorf("%w: %s.$not requires an operator object", ErrInvalidFilter, key)
			}
			inner, err := compileField(key, sub)
			if err != nil {
				return nil, err
			}
			conds = append(conds, negate{every(inner)})
		default:
			if !strings.HasPrefix(op, "$") {
				return nil, fmt.Errorf("%w: %s mixes operators and fields", ErrInvalidFilter, key)
			}
			return nil, fmt.Errorf("%w: unknown operator %s.%s", ErrInvalidFilter, key, op)
		}
	}
	return conds, nil
}

func compileRegex(key string, pattern, options any) (*regexp.Regexp, error) {
	expr, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s.$regex requires a string", ErrInvalidFilter, key)
	}
	if options != nil {
		opts, ok := options.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s.$options requires a string", ErrInvalidFilter, key)
		}
		for _, o := range opts {
			if !strings.ContainsRune("ims", o) {
				return nil, fmt.Errorf("%w: %s.$options: unsupported flag %q", ErrInvalidFilter, key, o)
			}
		}
		if opts != "" {
			expr = "(?" + opts + ")" + expr
		}
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.$regex: %w", ErrInvalidFilter, key, err)
	}
	return re, nil
}

// operators reports whether m is an operator object rather than a literal.
func operators(m map[string]any) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

// Nodes

type allOf []node

func (n allOf) match(doc map[string]any) bool {
	for _, c := range n {
		if !c.match(doc) {
			return false
		}
	}
	return true
}

type anyOf []node

func (n anyOf) match(doc map[string]any) bool {
	for _, c := range n {
		if c.match(doc) {
			return true
		}
	}
	return false
}

type noneOf []node

func (n noneOf) match(doc map[string]any) bool {
	return !anyOf(n).match(doc)
}

type not struct{ n node }

func (n not) match(doc map[string]any) bool {
	return !n.n.match(doc)
}

type field struct {
	path  []string
	conds []cond
}

func (f field) match(doc map[string]any) bool {
	return every(f.conds).test(resolve(doc, f.path))
}

// Conditions

type every []cond

func (e every) test(vals []any) bool {
	for _, c := range e {
		if !c.test(vals) {
			return false
		}
	}
	return true
}

type negate struct{ c cond }

func (n negate) test(vals []any) bool {
	return !n.c.test(vals)
}

type eq struct{ v any }

func (c eq) test(vals []any) bool {
	if len(vals) == 0 {
		return c.v == nil
	}
	for _, v := range vals {
		if equal(v, c.v) {
			return true
		}
		if arr, ok := v.([]any); ok {
			for _, e := range arr {
				if equal(e, c.v) {
					return true
				}
			}
		}
	}
	return false
}

type in []any

func (c in) test(vals []any) bool {
	for _, item := range c {
		if (eq{item}).test(vals) {
			return true
		}
	}
	return false
}

type all []any

func (c all) test(vals []any) bool {
	if len(c) == 0 {
		return false
	}
	for _, v := range vals {
		arr, ok := v.([]any)
		if !ok {
			arr = []any{v}
		}
		missing := slices.IndexFunc(c, func(item any) bool {
			return !slices.ContainsFunc(arr, func(e any) bool { return equal(e, item) })
		})
		if missing < 0 {
			return true
		}
	}
	return false
}

type exists bool

func (c exists) test(vals []any) bool {
	return (len(vals) > 0) == bool(c)
}

type length int

func (c length) test(vals []any) bool {
	for _, v := range vals {
		if arr, ok := v.([]any); ok && len(arr) == int(c) {
			return true
		}
	}
	return false
}

type match struct{ re *regexp.Regexp }

func (c match) test(vals []any) bool {
	for _, v := range flatten(vals) {
		if s, ok := v.(string); ok && c.re.MatchString(s) {
			return true
		}
	}
	return false
}

type compare struct {
	op string
	v  any
}

func (c compare) test(vals []any) bool {
	for _, v := range flatten(vals) {
		n, ok := order(v, c.v)
		if !ok {
			continue
		}
		switch c.op {
		case "$gt":
			ok = n > 0
		case "$gte":
			ok = n >= 0
		case "$lt":
			ok = n < 0
		case "$lte":
			ok = n <= 0
		}
		if ok {
			return true
		}
	}
	return false
}

// Values

// resolve returns the values at path. Numeric segments index arrays; other
// segments applied to an array fan out over its object elements.
func resolve(v any, path []string) []any {
	if len(path) == 0 {
		return []any{v}
	}
	switch t := v.(type) {
	case map[string]any:
		next, ok := t[path[0]]
		if !ok {
			return nil
		}
		return resolve(next, path[1:])
	case []any:
		if i, err := strconv.Atoi(path[0]); err == nil {
			if i < 0 || i >= len(t) {
				return nil
			}
			return resolve(t[i], path[1:])
		}
		var out []any
		for _, e := range t {
			if _, ok := e.(map[string]any); ok {
				out = append(out, resolve(e, path)...)
			}
		}
		return out
	}
	return nil
}

// flatten expands array values one level, for operators that test elements.
func flatten(vals []any) []any {
	out := make([]any, 0, len(vals))
	for _, v := range vals {
		if arr, ok := v.([]any); ok {
			out = append(out, arr...)
		} else {
			out = append(out, v)
		}
	}
	return out
}

// equal compares values structurally. Numbers compare by value whatever
// their Go type.
func equal(a, b any) bool {
	x, xok := number(a)
	y, yok := number(b)
	if xok || yok {
		return xok && yok && x == y
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		return ok && slices.EqualFunc(x, y, equal)
	case map[string]any:
		y, ok := b.(map[string]any)
		return ok && maps.EqualFunc(x, y, equal)
	}
	return reflect.DeepEqual(a, b)
}

// order compares two values of the same class (numbers or strings).
func order(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return cmp.Compare(x, y), true
		}
		return 0, false
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), true
		}
	}
	return 0, false
}

func truthy(v any) (bool, bool) {
	if b, ok := v.(bool); ok {
		return b, true
	}
	if n, ok := number(v); ok {
		return n != 0, true
	}
	return false, false
}

// number converts any Go numeric value to float64.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// normalize rewrites a filter operand into the shapes JSON decoding
// produces.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return t
	case Filter:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	if n, ok := number(v); ok {
		return n
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = normalize(iter.Value().Interface())
		}
		return out
	}
	return v
}
