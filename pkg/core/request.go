package core

import (
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
)

type Params map[string]any

// Values converts params to url.Values using the exchange's scalar formatting.
func (p Params) Values() url.Values {
	values := make(url.Values, len(p))
	for k, v := range p {
		values.Set(k, formatParam(v))
	}
	return values
}

// Encode urlencodes params with keys in sorted order, so equal maps always
// produce the same string regardless of how they were built.
func (p Params) Encode() string {
	return p.Values().Encode()
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case *apd.Decimal:
		return val.Text('f')
	case apd.Decimal:
		return val.Text('f')
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ExpandPath substitutes {placeholder} segments of template with matching
// params. It returns the expanded path and a copy of params without the
// consumed keys.
func ExpandPath(template string, params Params) (string, Params, error) {
	rest := make(Params, len(params))
	maps.Copy(rest, params)

	var b strings.Builder
	for {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			b.WriteString(template)
			break
		}
		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			return "", nil, fmt.Errorf("unterminated placeholder in %q", template)
		}
		key := template[start+1 : start+end]
		val, ok := rest[key]
		if !ok {
			return "", nil, fmt.Errorf("missing path parameter: %s", key)
		}
		b.WriteString(template[:start])
		b.WriteString(url.PathEscape(formatParam(val)))
		delete(rest, key)
		template = template[start+end+1:]
	}

	return b.String(), rest, nil
}

type Request struct {
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Operation Operation         `json:"operation"`
	Query     Params            `json:"query,omitempty"`
	Body      string            `json:"body,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	Weight    int               `json:"weight"`
	CacheKey  string            `json:"cache_key,omitempty"`
	CacheTTL  time.Duration     `json:"cache_ttl,omitempty"`
	Access    Access            `json:"access"`
}

func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Query:   make(Params),
		Headers: make(map[string]string),
		Weight:  1,
	}
}

func (r *Request) SetQuery(key string, value any) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	r.Query[key] = value
	return r
}

func (r *Request) SetBody(body string) *Request {
	r.Body = body
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetWeight(weight int) *Request {
	r.Weight = weight
	return r
}

func (r *Request) SetCache(key string, ttl time.Duration) *Request {
	r.CacheKey = key
	r.CacheTTL = ttl
	return r
}

func (r *Request) SetAccess(access Access) *Request {
	r.Access = access
	return r
}

// RequireAuth reports whether the request must be signed before sending.
func (r *Request) RequireAuth() bool {
	return r.Access == AccessPrivate
}

func (r *Request) SetQueryParams(params Params) *Request {
	if r.Query == nil {
		r.Query = make(Params)
	}
	maps.Copy(r.Query, params)
	return r
}

// QueryString returns the sorted, urlencoded query.
func (r *Request) QueryString() string {
	if len(r.Query) == 0 {
		return ""
	}
	return r.Query.Encode()
}
