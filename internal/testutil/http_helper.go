package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MakeRequest builds a test request, JSON-encoding the body when one is
// given. Handler tests pair it with httptest.NewRecorder.
func MakeRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// SetAuthHeader attaches a Bearer token, the way the mobile clients send
// their gateway access token.
func SetAuthHeader(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// SetCookie adds a bare name/value cookie to a request.
func SetCookie(req *http.Request, name, value string) {
	req.AddCookie(&http.Cookie{Name: name, Value: value})
}

// ParseJSONResponse decodes the recorded response body into v, failing the
// test with the raw body on a decode error.
func ParseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response body: %v\nbody: %s", err, rec.Body.String())
	}
}

// AssertStatusCode checks the recorded status, dumping the body on a
// mismatch so the failing assertion shows what the handler actually said.
func AssertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Errorf("status = %d, want %d\nbody: %s", rec.Code, want, rec.Body.String())
	}
}

// AssertCookie requires a Set-Cookie for name in the response and returns
// it; an expected value may be passed to pin the cookie's content.
func AssertCookie(t *testing.T, rec *httptest.ResponseRecorder, name string, expectedValue ...string) *http.Cookie {
	t.Helper()

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name != name {
			continue
		}
		if len(expectedValue) > 0 && cookie.Value != expectedValue[0] {
			t.Errorf("cookie %s = %q, want %q", name, cookie.Value, expectedValue[0])
		}
		return cookie
	}

	t.Errorf("response sets no %s cookie", name)
	return nil
}
