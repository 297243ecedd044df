// Package search models FHIR search parameters as typed values and turns them
// into query predicates.
package search

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidParameter is returned when a search parameter cannot be parsed or
// names a chain or target type the resource does not support.
var ErrInvalidParameter = errors.New("invalid search parameter")

// Token is a single token search value. System is empty for unqualified
// tokens ("code" or "|code"), which match internal ids and UUIDs.
type Token struct {
	System string
	Code   string
}

// String renders the token in {system}|{code} form.
func (t Token) String() string {
	if t.System == "" {
		return t.Code
	}
	return t.System + "|" + t.Code
}

// TokenOrList is a comma-separated list of alternatives for one parameter.
type TokenOrList []Token

// TokenAndList holds one TokenOrList per repetition of a parameter.
type TokenAndList []TokenOrList

// ReferenceParam is one alternative of a reference parameter. Chain names a
// searchable property of the target ("given", "identifier", ...); an empty
// Chain means Value is the target's own id or UUID.
type ReferenceParam struct {
	TargetType string
	Chain      string
	Value      string
}

// ReferenceOrList is a list of alternatives for one reference parameter.
type ReferenceOrList []ReferenceParam

// ReferenceAndList holds every repetition of a reference parameter,
// including chained forms.
type ReferenceAndList []ReferenceOrList

// ParseToken splits "system|code". A value without a pipe is unqualified.
func ParseToken(raw string) Token {
	if i := strings.Index(raw, "|"); i >= 0 {
		return Token{System: raw[:i], Code: raw[i+1:]}
	}
	return Token{Code: raw}
}

// ParseTokenOrList parses a comma-separated token list. Empty entries are
// skipped, so an empty string yields an empty list.
func ParseTokenOrList(raw string) TokenOrList {
	var out TokenOrList
	for _, v := range splitOr(raw) {
		out = append(out, ParseToken(v))
	}
	return out
}

// ParseTokenAndList parses every repetition of a token parameter.
// It returns nil when no repetition carries a value.
func ParseTokenAndList(values []string) TokenAndList {
	var out TokenAndList
	for _, v := range values {
		if or := ParseTokenOrList(v); len(or) > 0 {
			out = append(out, or)
		}
	}
	return out
}

// TokenOr parses the first value of name as a TokenOrList, or nil when absent.
func TokenOr(q url.Values, name string) TokenOrList {
	for _, v := range q[name] {
		if or := ParseTokenOrList(v); len(or) > 0 {
			return or
		}
	}
	return nil
}

// TokenAnd parses all values of name as a TokenAndList, or nil when absent.
func TokenAnd(q url.Values, name string) TokenAndList {
	return ParseTokenAndList(q[name])
}

// ParseReferences collects the reference parameter name from q in all of its
// forms: "name=Type/id", "name=id", "name.chain=value" and
// "name:Type.chain=value". chains lists the chained properties the target
// supports; anything else is rejected.
func ParseReferences(q url.Values, name, targetType string, chains ...string) (ReferenceAndList, error) {
	allowed := map[string]bool{"": true}
	for _, c := range chains {
		allowed[c] = true
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out ReferenceAndList
	for _, key := range keys {
		chain, typ, ok := splitReferenceKey(key, name)
		if !ok {
			continue
		}
		if typ != "" && typ != targetType {
			return nil, fmt.Errorf("%w: %s targets %s, not %s", ErrInvalidParameter, name, targetType, typ)
		}
		if !allowed[chain] {
			return nil, fmt.Errorf("%w: unsupported chain %s.%s", ErrInvalidParameter, name, chain)
		}
		for _, raw := range q[key] {
			var or ReferenceOrList
			for _, v := range splitOr(raw) {
				if chain == "" {
					var err error
					if v, err = stripReferenceType(v, targetType); err != nil {
						return nil, err
					}
				}
				or = append(or, ReferenceParam{TargetType: targetType, Chain: chain, Value: v})
			}
			if len(or) > 0 {
				out = append(out, or)
			}
		}
	}
	return out, nil
}

// splitReferenceKey matches key against the reference parameter name and
// returns its chain and explicit type modifier.
func splitReferenceKey(key, name string) (chain, typ string, ok bool) {
	if !strings.HasPrefix(key, name) {
		return "", "", false
	}
	rest := key[len(name):]
	if rest == "" {
		return "", "", true
	}
	if rest[0] == ':' {
		rest = rest[1:]
		if i := strings.Index(rest, "."); i >= 0 {
			typ, rest = rest[:i], rest[i:]
		} else {
			return "", rest, true
		}
	}
	if rest == "" || rest[0] != '.' {
		return "", "", false
	}
	return rest[1:], typ, true
}

func stripReferenceType(v, targetType string) (string, error) {
	i := strings.LastIndex(v, "/")
	if i < 0 {
		return v, nil
	}
	typ := v[:i]
	if j := strings.LastIndex(typ, "/"); j >= 0 {
		typ = typ[j+1:]
	}
	if typ != targetType {
		return "", fmt.Errorf("%w: reference %q is not a %s", ErrInvalidParameter, v, targetType)
	}
	return v[i+1:], nil
}

// splitOr splits on unescaped commas and unescapes "\,".
func splitOr(raw string) []string {
	var out []string
	var cur strings.Builder
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if ch == '\\' && i+1 < len(raw) && raw[i+1] == ',' {
			cur.WriteByte(',')
			i++
			continue
		}
		if ch == ',' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// StringOr parses the first non-empty value of a string parameter as an OR
// list, or nil when absent.
func StringOr(q url.Values, name string) []string {
	for _, v := range q[name] {
		if or := splitOr(v); len(or) > 0 {
			return or
		}
	}
	return nil
}
