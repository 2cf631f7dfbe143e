package fhir

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Param is a single search parameter with one formatted value.
type Param struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// QueryParams is an ordered list of search parameters. Names may repeat.
// Appending never changes the receiver, so values can be shared freely.
type QueryParams struct {
	params []Param
}

// EmptyParams has no parameters.
var EmptyParams = QueryParams{}

// NewQueryParams returns params holding a single name/value pair.
func NewQueryParams(name, value string) QueryParams {
	return EmptyParams.Append(name, value)
}

// Append returns params with name=value added at the end.
func (p QueryParams) Append(name, value string) QueryParams {
	params := make([]Param, len(p.params), len(p.params)+1)
	copy(params, p.params)
	return QueryParams{params: append(params, Param{Name: name, Value: value})}
}

// AppendCoding appends a token parameter formatted as system|code.
func (p QueryParams) AppendCoding(name string, coding Coding) QueryParams {
	return p.Append(name, coding.SearchValue())
}

// AppendQuantity appends a quantity parameter formatted as
// <prefix><value> or <prefix><value>|<unit system>|<unit code>.
func (p QueryParams) AppendQuantity(name string, prefix SearchPrefix, value *apd.Decimal, unit *Coding) QueryParams {
	return p.Append(name, QuantityValue(prefix, value, unit))
}

// Params returns a copy of the parameters in insertion order.
func (p QueryParams) Params() []Param {
	out := make([]Param, len(p.params))
	copy(out, p.params)
	return out
}

func (p QueryParams) Len() int {
	return len(p.params)
}

// Equal reports whether both lists hold the same parameters in the same order.
func (p QueryParams) Equal(other QueryParams) bool {
	if len(p.params) != len(other.params) {
		return false
	}
	for i := range p.params {
		if p.params[i] != other.params[i] {
			return false
		}
	}
	return true
}

// Encode returns the parameters as an URL encoded query string, keeping order.
func (p QueryParams) Encode() string {
	var sb strings.Builder
	for i, param := range p.params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(param.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(param.Value))
	}
	return sb.String()
}

// String returns the parameters as a human readable, unescaped query string.
func (p QueryParams) String() string {
	var sb strings.Builder
	for i, param := range p.params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(param.Name)
		sb.WriteByte('=')
		sb.WriteString(param.Value)
	}
	return sb.String()
}

// QuantityValue formats a quantity search value. Decimals are written in plain
// notation keeping the precision they were created with.
func QuantityValue(prefix SearchPrefix, value *apd.Decimal, unit *Coding) string {
	s := string(prefix) + value.Text('f')
	if unit != nil {
		s += "|" + unit.System + "|" + unit.Code
	}
	return s
}

// Query is a search request against one resource type.
type Query struct {
	ResourceType string
	Params       QueryParams
}

// NewQuery creates a Query.
func NewQuery(resourceType string, params QueryParams) Query {
	return Query{ResourceType: resourceType, Params: params}
}

// Equal reports structural equality.
func (q Query) Equal(other Query) bool {
	return q.ResourceType == other.ResourceType && q.Params.Equal(other.Params)
}

// Key returns a string that is equal for two queries exactly when they are
// structurally equal.
func (q Query) Key() string {
	return q.ResourceType + "?" + q.Params.Encode()
}

func (q Query) String() string {
	return q.ResourceType + "?" + q.Params.String()
}

// MarshalText renders the query in its human readable form.
func (q Query) MarshalText() ([]byte, error) {
	return []byte(q.String()), nil
}
