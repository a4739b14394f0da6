package session

import (
	"fmt"
	"net/url"
	"time"

	"github.com/Louieza23/Letterboxio/pkg/letterboxd"
	"github.com/Louieza23/Letterboxio/pkg/types"
)

// fetchScript POSTs a urlencoded body from inside the page so the request
// carries the browser's cookies and passes the site's bot checks. When the
// request outlives timeoutMs it resolves to { timeout: true } instead of
// rejecting.
const fetchScript = `async ({ url, body, timeoutMs }) => {
	const controller = new AbortController();
	const timer = setTimeout(() => controller.abort(), timeoutMs);
	try {
		const res = await fetch(url, {
			method: "POST",
			credentials: "include",
			headers: {
				"Content-Type": "application/x-www-form-urlencoded; charset=UTF-8",
				"X-Requested-With": "XMLHttpRequest",
			},
			body,
			signal: controller.signal,
		});
		return { status: res.status, body: await res.text() };
	} catch (err) {
		if (err && err.name === "AbortError") {
			return { timeout: true };
		}
		throw err;
	} finally {
		clearTimeout(timer);
	}
}`

// withCSRF returns a copy of form with the token set.
func withCSRF(form url.Values, token string) url.Values {
	out := make(url.Values, len(form)+1)
	for k, v := range form {
		out[k] = append([]string(nil), v...)
	}
	out.Set(letterboxd.CSRFInputName, token)
	return out
}

func postForm(tab Tab, targetURL string, form url.Values, timeout time.Duration) (*ActionResponse, error) {
	result, err := tab.Evaluate(fetchScript, map[string]interface{}{
		"url":       targetURL,
		"body":      form.Encode(),
		"timeoutMs": timeout.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}

	obj, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected fetch result %T", result)
	}
	if timedOut, _ := obj["timeout"].(bool); timedOut {
		return nil, fmt.Errorf("%w: no response within %s", types.ErrNetworkTimeout, timeout)
	}
	status, ok := toInt(obj["status"])
	if !ok {
		return nil, fmt.Errorf("fetch result has no status: %v", obj["status"])
	}
	body, _ := obj["body"].(string)
	return &ActionResponse{StatusCode: status, Body: body}, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
