package repository

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"gorm.io/gorm/clause"
)

type operator int

const (
	opEquals operator = iota
	opNotEquals
	opGreaterThan
	opGreaterThanEqual
	opLessThan
	opLessThanEqual
	opBetween
	opIn
	opNotIn
	opLike
	opNotLike
	opStartingWith
	opEndingWith
	opContaining
	opIsNull
	opIsNotNull
	opTrue
	opFalse
)

// arity is the number of call arguments an operator consumes.
func (o operator) arity() int {
	switch o {
	case opIsNull, opIsNotNull, opTrue, opFalse:
		return 0
	case opBetween:
		return 2
	default:
		return 1
	}
}

type keyword struct {
	suffix string
	op     operator
}

// keywords is sorted longest first so that "GreaterThanEqual" wins over "GreaterThan".
var keywords = func() []keyword {
	kws := []keyword{
		{"IsGreaterThanEqual", opGreaterThanEqual},
		{"GreaterThanEqual", opGreaterThanEqual},
		{"IsGreaterThan", opGreaterThan},
		{"GreaterThan", opGreaterThan},
		{"IsAfter", opGreaterThan},
		{"After", opGreaterThan},
		{"IsLessThanEqual", opLessThanEqual},
		{"LessThanEqual", opLessThanEqual},
		{"IsLessThan", opLessThan},
		{"LessThan", opLessThan},
		{"IsBefore", opLessThan},
		{"Before", opLessThan},
		{"IsBetween", opBetween},
		{"Between", opBetween},
		{"IsNotIn", opNotIn},
		{"NotIn", opNotIn},
		{"IsIn", opIn},
		{"In", opIn},
		{"IsNotLike", opNotLike},
		{"NotLike", opNotLike},
		{"IsLike", opLike},
		{"Like", opLike},
		{"IsStartingWith", opStartingWith},
		{"StartingWith", opStartingWith},
		{"StartsWith", opStartingWith},
		{"IsEndingWith", opEndingWith},
		{"EndingWith", opEndingWith},
		{"EndsWith", opEndingWith},
		{"IsContaining", opContaining},
		{"Containing", opContaining},
		{"Contains", opContaining},
		{"IsNotNull", opIsNotNull},
		{"NotNull", opIsNotNull},
		{"IsNull", opIsNull},
		{"Null", opIsNull},
		{"IsTrue", opTrue},
		{"True", opTrue},
		{"IsFalse", opFalse},
		{"False", opFalse},
		{"IsNot", opNotEquals},
		{"Not", opNotEquals},
		{"Equals", opEquals},
		{"Is", opEquals},
	}
	sort.SliceStable(kws, func(i, j int) bool { return len(kws[i].suffix) > len(kws[j].suffix) })
	return kws
}()

type subject int

const (
	subjectFind subject = iota
	subjectCount
	subjectExists
	subjectDelete
	subjectUpdate
)

var subjectVerbs = []struct {
	verb string
	kind subject
}{
	{"exists", subjectExists},
	{"count", subjectCount},
	{"delete", subjectDelete},
	{"remove", subjectDelete},
	{"update", subjectUpdate},
	{"find", subjectFind},
	{"read", subjectFind},
	{"get", subjectFind},
	{"query", subjectFind},
	{"search", subjectFind},
	{"stream", subjectFind},
}

// limitPattern matches a result limit directly after the verb and an optional
// Distinct, so "findTopicsBy" and "findLastTopBy" carry no limit.
var limitPattern = regexp.MustCompile(`^(?:Distinct)?(First|Top)(\d*)(?:[A-Z]|$)`)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapedLike is "column LIKE pattern ESCAPE '\'". StartingWith, EndingWith and
// Containing bind their argument literally, so % and _ in it are escaped.
type escapedLike struct {
	Column  clause.Column
	Pattern string
}

func (l escapedLike) Build(builder clause.Builder) {
	builder.WriteQuoted(l.Column)
	builder.WriteString(" LIKE ")
	builder.AddVar(builder, l.Pattern)
	builder.WriteString(` ESCAPE '\'`)
}

func literalLike(col clause.Column, prefix string, arg any, suffix string) escapedLike {
	return escapedLike{Column: col, Pattern: prefix + likeEscaper.Replace(fmt.Sprint(arg)) + suffix}
}

type predicate struct {
	property string
	column   clause.Column
	op       operator
}

// plan is the parsed form of a derived query name. Arguments are bound per call.
type plan struct {
	name       string
	kind       subject
	distinct   bool
	limit      int
	predicates []predicate
	orders     []clause.OrderByColumn
	arity      int
}

func malformed(name, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedQuery, name, fmt.Sprintf(format, args...))
}

func malformedBy(name string, cause error) error {
	return fmt.Errorf("%w %q: %w", ErrMalformedQuery, name, cause)
}

// parsePlan parses a derived query name such as
// "findByUsernameAndAgeGreaterThanOrderByUsernameDesc" against reg.
func parsePlan(name string, reg *registry) (*plan, error) {
	p := &plan{name: name}

	rest, ok := "", false
	for _, sv := range subjectVerbs {
		if strings.HasPrefix(name, sv.verb) {
			p.kind = sv.kind
			rest = name[len(sv.verb):]
			ok = true
			break
		}
	}
	if !ok {
		return nil, malformed(name, "must start with find, read, get, query, search, stream, count, exists, delete, remove or update")
	}
	if rest != "" && !unicode.IsUpper(rune(rest[0])) {
		return nil, malformed(name, "subject must be camel case")
	}

	subjectPart, predicatePart, hasBy := splitBy(rest)
	if err := p.parseSubject(subjectPart); err != nil {
		return nil, malformedBy(name, err)
	}
	if !hasBy {
		return p, nil
	}

	orderPart := ""
	if i := strings.Index(predicatePart, "OrderBy"); i >= 0 {
		orderPart = predicatePart[i+len("OrderBy"):]
		predicatePart = predicatePart[:i]
		if orderPart == "" {
			return nil, malformed(name, "OrderBy without properties")
		}
	}
	if predicatePart == "" && orderPart == "" {
		return nil, malformed(name, "By without criteria")
	}

	if predicatePart != "" {
		for _, part := range splitCamel(predicatePart, "And") {
			if part == "" {
				return nil, malformed(name, "empty criterion around And")
			}
			pr, err := parsePredicate(part, reg)
			if err != nil {
				return nil, malformedBy(name, err)
			}
			p.predicates = append(p.predicates, pr)
			p.arity += pr.op.arity()
		}
	}

	if orderPart != "" {
		orders, err := parseOrders(orderPart, reg)
		if err != nil {
			return nil, malformedBy(name, err)
		}
		p.orders = orders
	}
	return p, nil
}

// splitBy splits s at the first "By" that starts a camel-case word.
func splitBy(s string) (before, after string, found bool) {
	for i := 0; i+2 <= len(s); i++ {
		if s[i:i+2] != "By" {
			continue
		}
		if i+2 == len(s) || unicode.IsUpper(rune(s[i+2])) {
			return s[:i], s[i+2:], true
		}
	}
	return s, "", false
}

func (p *plan) parseSubject(s string) error {
	if strings.Contains(s, "Distinct") {
		p.distinct = true
	}
	if m := limitPattern.FindStringSubmatch(s); m != nil {
		p.limit = 1
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid result limit %q", m[1]+m[2])
			}
			p.limit = n
		}
		if p.kind != subjectFind {
			return fmt.Errorf("%s cannot limit results", m[1])
		}
	}
	return nil
}

// splitCamel splits s on sep where sep begins a new camel-case word and is
// followed by another one.
func splitCamel(s, sep string) []string {
	var parts []string
	start := 0
	for i := 1; i+len(sep) < len(s); i++ {
		if s[i:i+len(sep)] == sep && unicode.IsUpper(rune(s[i+len(sep)])) {
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i = start
		}
	}
	return append(parts, s[start:])
}

func parsePredicate(part string, reg *registry) (predicate, error) {
	for _, kw := range keywords {
		if !strings.HasSuffix(part, kw.suffix) || len(part) == len(kw.suffix) {
			continue
		}
		property := part[:len(part)-len(kw.suffix)]
		if col, err := reg.column(property); err == nil {
			return predicate{property: property, column: col, op: kw.op}, nil
		}
	}

	col, err := reg.column(part)
	if err != nil {
		if strings.Contains(part, "Or") {
			return predicate{}, fmt.Errorf("%w (Or criteria are not supported)", err)
		}
		return predicate{}, err
	}
	return predicate{property: part, column: col, op: opEquals}, nil
}

func parseOrders(s string, reg *registry) ([]clause.OrderByColumn, error) {
	var orders []clause.OrderByColumn
	for s != "" {
		property, desc, rest := nextOrder(s)
		if property == "" {
			return nil, fmt.Errorf("order direction without property")
		}
		col, err := reg.column(property)
		if err != nil {
			return nil, err
		}
		orders = append(orders, clause.OrderByColumn{Column: col, Desc: desc})
		s = rest
	}
	return orders, nil
}

// nextOrder consumes "PropertyAsc", "PropertyDesc" or a trailing "Property".
func nextOrder(s string) (property string, desc bool, rest string) {
	for i := 1; i < len(s); i++ {
		for _, dir := range []string{"Desc", "Asc"} {
			end := i + len(dir)
			if end > len(s) || s[i:end] != dir {
				continue
			}
			if end == len(s) || unicode.IsUpper(rune(s[end])) {
				return s[:i], dir == "Desc", s[end:]
			}
		}
	}
	return s, false, ""
}

// conditions binds args to the plan predicates, left to right.
func (p *plan) conditions(args []any) ([]clause.Expression, error) {
	if len(args) != p.arity {
		return nil, fmt.Errorf("%w: %s expects %d, got %d", ErrArgumentCount, p.name, p.arity, len(args))
	}

	exprs := make([]clause.Expression, 0, len(p.predicates))
	i := 0
	for _, pr := range p.predicates {
		col := pr.column
		switch pr.op {
		case opEquals:
			exprs = append(exprs, clause.Eq{Column: col, Value: args[i]})
		case opNotEquals:
			exprs = append(exprs, clause.Neq{Column: col, Value: args[i]})
		case opGreaterThan:
			exprs = append(exprs, clause.Gt{Column: col, Value: args[i]})
		case opGreaterThanEqual:
			exprs = append(exprs, clause.Gte{Column: col, Value: args[i]})
		case opLessThan:
			exprs = append(exprs, clause.Lt{Column: col, Value: args[i]})
		case opLessThanEqual:
			exprs = append(exprs, clause.Lte{Column: col, Value: args[i]})
		case opBetween:
			exprs = append(exprs,
				clause.Gte{Column: col, Value: args[i]},
				clause.Lte{Column: col, Value: args[i+1]})
		case opIn, opNotIn:
			values, err := sliceValues(args[i])
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", p.name, pr.property, err)
			}
			in := clause.IN{Column: col, Values: values}
			if pr.op == opNotIn {
				exprs = append(exprs, clause.Not(in))
			} else {
				exprs = append(exprs, in)
			}
		case opLike:
			exprs = append(exprs, clause.Like{Column: col, Value: args[i]})
		case opNotLike:
			exprs = append(exprs, clause.Not(clause.Like{Column: col, Value: args[i]}))
		case opStartingWith:
			exprs = append(exprs, literalLike(col, "", args[i], "%"))
		case opEndingWith:
			exprs = append(exprs, literalLike(col, "%", args[i], ""))
		case opContaining:
			exprs = append(exprs, literalLike(col, "%", args[i], "%"))
		case opIsNull:
			exprs = append(exprs, clause.Eq{Column: col, Value: nil})
		case opIsNotNull:
			exprs = append(exprs, clause.Neq{Column: col, Value: nil})
		case opTrue:
			exprs = append(exprs, clause.Eq{Column: col, Value: true})
		case opFalse:
			exprs = append(exprs, clause.Eq{Column: col, Value: false})
		}
		i += pr.op.arity()
	}
	return exprs, nil
}

func sliceValues(arg any) ([]any, error) {
	v := reflect.ValueOf(arg)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: In expects a slice, got %T", ErrArgumentCount, arg)
	}
	values := make([]any, v.Len())
	for i := range values {
		values[i] = v.Index(i).Interface()
	}
	return values, nil
}
