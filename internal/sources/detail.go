package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	apperrors "uitf-catalog/internal/errors"
	"uitf-catalog/internal/fetch"
)

// DetailClient fetches per-symbol detail documents and flattens them into
// dotted key paths, the form the enricher's keyword extraction works on.
type DetailClient struct {
	client  *fetch.Client
	baseURL string
}

// NewDetailClient creates a detail source adapter.
func NewDetailClient(client *fetch.Client, baseURL string) *DetailClient {
	return &DetailClient{client: client, baseURL: baseURL}
}

// FetchDetail returns the flattened key/value view of a symbol's detail
// document. Keys are dotted paths ("profile.issuer.website"), values are
// their string renderings. Key order is stable (sorted) so "first matching
// key" semantics are deterministic.
func (d *DetailClient) FetchDetail(ctx context.Context, symbol string) (map[string]string, []string, error) {
	addr := d.baseURL + "/" + url.PathEscape(symbol)
	data, err := d.client.CachedGet(ctx, "detail", addr)
	if err != nil {
		return nil, nil, err
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, apperrors.NewParseError("detail", symbol, "invalid json document", err)
	}

	flat := make(map[string]string)
	flatten("", doc, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return flat, keys, nil
}

// flatten walks a decoded JSON value, recording every scalar leaf under its
// dotted path.
func flatten(prefix string, v interface{}, out map[string]string) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			flatten(joinPath(prefix, k), child, out)
		}
	case []interface{}:
		for i, child := range val {
			flatten(joinPath(prefix, strconv.Itoa(i)), child, out)
		}
	case string:
		out[prefix] = val
	case float64:
		out[prefix] = strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		out[prefix] = strconv.FormatBool(val)
	case nil:
		// absent, not empty string
	default:
		out[prefix] = fmt.Sprint(val)
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
