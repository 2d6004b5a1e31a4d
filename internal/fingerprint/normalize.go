package fingerprint

import (
	"strconv"
	"strings"

	"github.com/DataDog/go-sqllexer"
)

// Normalize replaces every numeric and string literal in sql with $1, $2, ...
// in order of appearance and collapses whitespace. Queries that differ only in
// literal values normalize to the same string. Input the lexer cannot
// tokenize is returned unchanged.
func Normalize(sql string) string {
	if sql == "" {
		return ""
	}

	lexer := sqllexer.New(sql, sqllexer.WithDBMS(sqllexer.DBMSPostgres))

	var b strings.Builder
	b.Grow(len(sql))
	placeholder := 0
	writePlaceholder := func() {
		placeholder++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(placeholder))
	}

	// prev is the token just before the current one; last is the most
	// recent token that is not whitespace.
	var prev, last sqllexer.Token

	for {
		tok := lexer.Scan()
		if tok.Type == sqllexer.EOF {
			break
		}
		cur := sqllexer.Token{Type: tok.Type, Value: tok.Value}

		switch cur.Type {
		case sqllexer.ERROR, sqllexer.INCOMPLETE_STRING:
			return sql
		case sqllexer.STRING:
			// 'O''Brien' lexes as two adjacent strings.
			if prev.Type != sqllexer.STRING {
				writePlaceholder()
			}
		case sqllexer.NUMBER:
			// The lexer folds the operator of a-5 into the number.
			if sign := cur.Value[0]; (sign == '-' || sign == '+') && endsOperand(last) {
				b.WriteByte(' ')
				b.WriteByte(sign)
				b.WriteByte(' ')
			}
			writePlaceholder()
		case sqllexer.DOLLAR_QUOTED_STRING:
			writePlaceholder()
		default:
			if cur.Value == "" {
				return sql
			}
			b.WriteString(cur.Value)
		}

		prev = cur
		if cur.Type != sqllexer.SPACE {
			last = cur
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func endsOperand(tok sqllexer.Token) bool {
	switch tok.Type {
	case sqllexer.IDENT, sqllexer.QUOTED_IDENT, sqllexer.NUMBER, sqllexer.STRING,
		sqllexer.DOLLAR_QUOTED_STRING, sqllexer.POSITIONAL_PARAMETER, sqllexer.BIND_PARAMETER:
		return true
	case sqllexer.PUNCTUATION:
		return tok.Value == ")" || tok.Value == "]"
	}
	return false
}
