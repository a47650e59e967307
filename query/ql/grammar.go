package ql

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

/*
This file contains a participle grammar for the teeql query language, a small
SQL dialect: SELECT lists with expressions and aliases, FROM over subqueries or
table functions (tee, range, read_csv), WHERE, LIMIT and OFFSET. Table function
arguments may be parenthesized subqueries, named arguments (path = 'out.csv'),
or scalar expressions.

Keywords are matched case-insensitively. Identifiers keep their case.
*/

////////////////////////////////////////////////////////////////////////////////

var (
	Options = []participle.Option{ // nolint:gochecknoglobals
		participle.Lexer(
			lexer.MustSimple([]lexer.SimpleRule{
				{Name: "whitespace", Pattern: `\s+`},
				{Name: "comment", Pattern: `--[^\n]*`},
				{Name: "Float", Pattern: `\d+\.\d*([eE][-+]?\d+)?|\.\d+([eE][-+]?\d+)?|\d+[eE][-+]?\d+`},
				{Name: "Integer", Pattern: `\d+`},
				{Name: "String", Pattern: `'(?:[^']|'')*'`},
				{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
				{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
				{Name: "Operators", Pattern: `::|//|<>|!=|<=|>=|[-+*/%=<>(),;.]`},
			}),
		),
		participle.Elide("whitespace", "comment"),
		participle.CaseInsensitive("Ident"),
		participle.UseLookahead(4),
	}
)

// Script is a sequence of statements separated by semicolons.
type Script struct {
	Statements []*Query `( @@ ";"* )+`
}

// Query represents a SELECT statement.
type Query struct {
	Select []*SelectItem `"SELECT" @@ ( "," @@ )*`
	From   *Source       `( "FROM" @@ )?`
	Where  *Expr         `( "WHERE" @@ )?`
	Limit  *int64        `( "LIMIT" @Integer )?`
	Offset *int64        `( "OFFSET" @Integer )?`
}

// SelectItem is one entry of a select list.
type SelectItem struct {
	Star  bool        `( @"*"`
	Expr  *Expr       `| @@ )`
	Alias *Identifier `( "AS" @( Ident | QuotedIdent | String ) )?`
}

// Source is the relation named in a FROM clause.
type Source struct {
	Subquery *Query     `( "(" @@ ")"`
	Function *TableCall `| @@ )`
	Alias    *Alias     `@@?`
}

// Alias renames a relation and optionally its columns.
type Alias struct {
	Name    Identifier   `"AS" @( Ident | QuotedIdent | String )`
	Columns []Identifier `( "(" ( @( Ident | QuotedIdent ) ( "," @( Ident | QuotedIdent ) )* )? ")" )?`
}

// TableCall is a table function invocation.
type TableCall struct {
	Name Identifier `@Ident "("`
	Args []*Arg     `( @@ ( "," @@ )* )? ")"`
}

// Arg is a table function argument.
type Arg struct {
	Subquery *Query    `  "(" @@ ")"`
	Named    *NamedArg `| @@`
	Value    *Expr     `| @@`
}

// NamedArg is a name = value table function argument.
type NamedArg struct {
	Name  Identifier `@Ident "="`
	Value *Expr      `@@`
}

// Expr is a disjunction.
type Expr struct {
	Or []*AndExpr `@@ ( "OR" @@ )*`
}

// AndExpr is a conjunction.
type AndExpr struct {
	And []*NotExpr `@@ ( "AND" @@ )*`
}

// NotExpr is an optionally negated comparison.
type NotExpr struct {
	Not        bool        `@"NOT"?`
	Comparison *Comparison `@@`
}

// Comparison is an optional binary comparison of two arithmetic terms.
type Comparison struct {
	Left  *Additive `@@`
	Op    string    `( @( "=" | "<>" | "!=" | "<=" | ">=" | "<" | ">" )`
	Right *Additive `  @@ )?`
}

// Additive is a chain of additions and subtractions.
type Additive struct {
	Left  *Multiplicative `@@`
	Right []*AddTerm      `@@*`
}

// AddTerm is one operand of an additive chain.
type AddTerm struct {
	Op    string          `@( "+" | "-" )`
	Right *Multiplicative `@@`
}

// Multiplicative is a chain of multiplications, divisions and modulos.
type Multiplicative struct {
	Left  *Unary     `@@`
	Right []*MulTerm `@@*`
}

// MulTerm is one operand of a multiplicative chain.
type MulTerm struct {
	Op    string `@( "*" | "//" | "/" | "%" )`
	Right *Unary `@@`
}

// Unary is an optionally negated postfix expression.
type Unary struct {
	Negate bool     `@"-"?`
	Value  *Postfix `@@`
}

// Postfix is a primary expression followed by any number of :: casts.
type Postfix struct {
	Primary *Primary     `@@`
	Casts   []Identifier `( "::" @Ident )*`
}

// Primary is a literal, column reference, function call, cast, or
// parenthesized expression.
type Primary struct {
	Cast    *CastExpr   `  @@`
	Call    *Call       `| @@`
	Float   *float64    `| @Float`
	Integer *int64      `| @Integer`
	String  *Identifier `| @String`
	Null    bool        `| @"NULL"`
	Bool    *Boolean    `| @( "TRUE" | "FALSE" )`
	Column  *Identifier `| @( Ident | QuotedIdent )`
	Subexpr *Expr       `| "(" @@ ")"`
}

// CastExpr is CAST(expr AS type).
type CastExpr struct {
	Value *Expr      `"CAST" "(" @@`
	Type  Identifier `"AS" @Ident ")"`
}

// Call is a scalar function call.
type Call struct {
	Name Identifier `@Ident "("`
	Args []*Expr    `( @@ ( "," @@ )* )? ")"`
}

// Identifier captures a bare, double-quoted, or single-quoted name with its
// quotes removed and doubled quotes collapsed.
type Identifier string

// Capture implements participle.Capture.
func (i *Identifier) Capture(values []string) error {
	*i = Identifier(unquote(values[0]))
	return nil
}

// String returns the identifier text.
func (i Identifier) String() string {
	return string(i)
}

// Boolean captures TRUE or FALSE.
type Boolean bool

// Capture implements participle.Capture.
func (b *Boolean) Capture(values []string) error {
	*b = Boolean(strings.EqualFold(values[0], "true"))
	return nil
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	return strings.ReplaceAll(inner, string([]byte{q, q}), string(q))
}

// NewParser returns a new script parser.
func NewParser() *participle.Parser[Script] {
	return participle.MustBuild[Script](Options...)
}
