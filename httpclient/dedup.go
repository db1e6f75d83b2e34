package httpclient

import (
	"golang.org/x/sync/singleflight"
)

// dedupGroup collapses concurrent identical GET requests into one in-flight
// execution. singleflight registers the fingerprint when the first call
// starts and drops it when the call settles, so the "at most one transport
// call per fingerprint" invariant holds regardless of outcome.
type dedupGroup struct {
	group singleflight.Group
}

func (d *dedupGroup) do(key string, fn func() (*Response, error)) (*Response, error) {
	v, err, _ := d.group.Do(key, func() (any, error) {
		return fn()
	})
	if v == nil {
		return nil, err
	}
	return v.(*Response), err
}

// fingerprint derives the deduplication key for a request: method, path and
// the canonical encoding of its query parameters.
func fingerprint(method string, req *Request) string {
	key := method + " " + req.Path
	if len(req.Query) > 0 {
		key += "?" + req.Query.Encode()
	}
	return key
}
