package httpbin

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3xpluto/go-reqbin/internal/status"
)

var app = New(Options{}).Handler()

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestIndex(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/anything")
	assert.Contains(t, rec.Body.String(), "curl http://example.com/ip")
}

func TestStaticText(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/robots.txt", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Disallow: /deny")

	rec = do(t, app, http.MethodGet, "/deny", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(t, app, http.MethodGet, "/html", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Herman Melville")
}

func TestIP(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/ip", nil, nil)
	assert.Equal(t, "192.0.2.1", decode(t, rec)["origin"])

	rec = do(t, app, http.MethodGet, "/ip", nil, map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"})
	assert.Equal(t, "1.2.3.4, 5.6.7.8", decode(t, rec)["origin"])
}

func TestUUID(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/uuid", nil, nil)
	id, err := uuid.Parse(decode(t, rec)["uuid"].(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), id.Version())
}

func TestHeaders_HidesEnv(t *testing.T) {
	t.Parallel()

	hdr := map[string]string{"X-Forwarded-For": "1.2.3.4", "Via": "1.1 proxy", "X-Custom": "yes"}

	got := decode(t, do(t, app, http.MethodGet, "/headers", nil, hdr))["headers"].(map[string]any)
	assert.Equal(t, "yes", got["X-Custom"])
	assert.Equal(t, "example.com", got["Host"])
	assert.NotContains(t, got, "X-Forwarded-For")
	assert.NotContains(t, got, "Via")

	got = decode(t, do(t, app, http.MethodGet, "/headers?show_env=1", nil, hdr))["headers"].(map[string]any)
	assert.Equal(t, "1.2.3.4", got["X-Forwarded-For"])
	assert.Equal(t, "1.1 proxy", got["Via"])
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/user-agent", nil, map[string]string{"User-Agent": "reqbin-test/1.0"})
	assert.Equal(t, "reqbin-test/1.0", decode(t, rec)["user-agent"])
}

func TestGet(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/get?a=1&b=2&b=3", nil, map[string]string{"X-Forwarded-Proto": "https"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "https://example.com/get?a=1&b=2&b=3", got["url"])
	assert.Equal(t, map[string]any{"a": "1", "b": []any{"2", "3"}}, got["args"])
	assert.NotContains(t, got, "json")
	assert.NotContains(t, got, "method")
}

func TestPost_JSON(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodPost, "/post", strings.NewReader(`{"a":1}`), map[string]string{"Content-Type": "application/json"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, map[string]any{"a": float64(1)}, got["json"])
	assert.Equal(t, `{"a":1}`, got["data"])
	assert.Equal(t, map[string]any{}, got["form"])
	assert.Equal(t, map[string]any{}, got["files"])
}

func TestPost_Form(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodPost, "/post", strings.NewReader("x=1&y=2&y=3"),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	got := decode(t, rec)
	assert.Equal(t, map[string]any{"x": "1", "y": []any{"2", "3"}}, got["form"])
	assert.Nil(t, got["json"])
}

func TestPost_BinaryBody(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodPost, "/post", strings.NewReader("\xff\xfe\x00"), nil)
	got := decode(t, rec)
	assert.Equal(t, "data:application/octet-stream;base64,//4A", got["data"])
}

func TestPost_DataURLTextEchoedVerbatim(t *testing.T) {
	t.Parallel()

	const body = "data:text/plain;base64,aGk="
	rec := do(t, app, http.MethodPost, "/post", strings.NewReader(body),
		map[string]string{"Content-Type": "text/plain"})
	got := decode(t, rec)
	assert.Equal(t, body, got["data"])
}

func TestMethodRoutes(t *testing.T) {
	t.Parallel()

	for _, m := range []string{http.MethodPut, http.MethodPatch, http.MethodDelete} {
		rec := do(t, app, m, "/"+strings.ToLower(m), strings.NewReader("hi"), nil)
		require.Equal(t, http.StatusOK, rec.Code, m)
		assert.Equal(t, "hi", decode(t, rec)["data"], m)
	}

	rec := do(t, app, http.MethodGet, "/post", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnything(t *testing.T) {
	t.Parallel()

	for _, target := range []string{"/anything", "/anything/a/b/c"} {
		rec := do(t, app, http.MethodPatch, target+"?q=1", strings.NewReader("x"), nil)
		require.Equal(t, http.StatusOK, rec.Code, target)
		got := decode(t, rec)
		assert.Equal(t, "PATCH", got["method"])
		assert.Equal(t, "http://example.com"+target+"?q=1", got["url"])
		assert.Equal(t, "x", got["data"])
	}
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()

	h := http.MaxBytesHandler(app, 8)
	rec := do(t, h, http.MethodPost, "/post", strings.NewReader(strings.Repeat("a", 64)), nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	got := decode(t, rec)
	assert.Equal(t, "request_too_large", got["error"])
	assert.Equal(t, float64(8), got["max_bytes"])
}

func TestRedirect_RelativeChain(t *testing.T) {
	t.Parallel()

	target := "/redirect/5"
	hops := 0
	for {
		rec := do(t, app, http.MethodGet, target, nil, nil)
		require.Equal(t, http.StatusFound, rec.Code, target)
		target = rec.Header().Get("Location")
		require.True(t, strings.HasPrefix(target, "/"), target)
		if target == "/get" {
			break
		}
		hops++
		require.Less(t, hops, 10)
	}
	assert.Equal(t, 4, hops)

	rec := do(t, app, http.MethodGet, "/redirect/1", nil, nil)
	assert.Equal(t, "/get", rec.Header().Get("Location"))
	assert.Empty(t, rec.Body.String())
}

func TestRedirect_Absolute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target string
		expect string
	}{
		{"/redirect/3?absolute=true", "http://example.com/absolute-redirect/2"},
		{"/redirect/3?absolute=TRUE", "http://example.com/absolute-redirect/2"},
		{"/redirect/3?absolute=false", "/relative-redirect/2"},
		{"/absolute-redirect/1", "http://example.com/get"},
		{"/absolute-redirect/2", "http://example.com/absolute-redirect/1"},
		{"/relative-redirect/2", "/relative-redirect/1"},
	}
	for _, tt := range tests {
		rec := do(t, app, http.MethodGet, tt.target, nil, nil)
		require.Equal(t, http.StatusFound, rec.Code, tt.target)
		assert.Equal(t, tt.expect, rec.Header().Get("Location"), tt.target)
	}

	rec := do(t, app, http.MethodGet, "/absolute-redirect/1", nil, map[string]string{"X-Forwarded-Ssl": "on"})
	assert.Equal(t, "https://example.com/get", rec.Header().Get("Location"))
}

func TestRedirect_BadCount(t *testing.T) {
	t.Parallel()

	small := New(Options{MaxRedirects: 3}).Handler()
	for _, target := range []string{"/redirect/0", "/relative-redirect/0", "/absolute-redirect/4"} {
		rec := do(t, small, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
	rec := do(t, small, http.MethodGet, "/redirect/3", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRedirectTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target string
		code   int
		loc    string
	}{
		{"/redirect-to?url=http://example.org/x", http.StatusFound, "http://example.org/x"},
		{"/redirect-to?url=/a%20b&status_code=307", http.StatusTemporaryRedirect, "/a b"},
		{"/redirect-to?URL=/x&Status_Code=301", http.StatusMovedPermanently, "/x"},
		{"/redirect-to?url=/x&status_code=200", http.StatusFound, "/x"},
		{"/redirect-to?url=/x&status_code=abc", http.StatusFound, "/x"},
	}
	for _, tt := range tests {
		rec := do(t, app, http.MethodGet, tt.target, nil, nil)
		assert.Equal(t, tt.code, rec.Code, tt.target)
		assert.Equal(t, tt.loc, rec.Header().Get("Location"), tt.target)
	}

	rec := do(t, app, http.MethodPost, "/redirect-to", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStream_Clamped(t *testing.T) {
	t.Parallel()

	var reported int
	h := New(Options{OnStreamLines: func(n int) { reported = n }}).Handler()
	rec := do(t, h, http.MethodGet, "/stream/150", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	sc := bufio.NewScanner(rec.Body)
	next := 0
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		assert.Equal(t, float64(next), line["id"])
		assert.Equal(t, "http://example.com/stream/150", line["url"])
		assert.Contains(t, line, "headers")
		assert.Contains(t, line, "origin")
		assert.Contains(t, line, "args")
		next++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 100, next)
	assert.Equal(t, 100, reported)
}

func TestStream_HugeCount(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/stream/99999999999999999999999", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, strings.Count(rec.Body.String(), "\n"))
}

func TestStatus_Teapot(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/status/418", nil, nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, string(status.For(418).Body), rec.Body.String())
	assert.Contains(t, rec.Header().Get("X-More-Info"), "rfc2324")
}

func TestStatus_Table(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodDelete, "/status/302", nil, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/redirect/1", rec.Header().Get("Location"))

	rec = do(t, app, http.MethodPost, "/status/401", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="Fake Realm"`, rec.Header().Get("WWW-Authenticate"))

	rec = do(t, app, http.MethodGet, "/status/406", nil, nil)
	assert.Equal(t, http.StatusNotAcceptable, rec.Code)
	got := decode(t, rec)
	assert.Contains(t, got, "accept")

	rec = do(t, app, http.MethodGet, "/status/204", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestStatus_Invalid(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"abc", "200:x,500", "200,abc", "99", "200:0,500:0"} {
		rec := do(t, app, http.MethodGet, "/status/"+spec, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, spec)
		assert.Equal(t, "Invalid status code", rec.Body.String(), spec)
	}
}

func TestStatus_WeightedRoughlyEven(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewPCG(7, 11))
	h := New(Options{Rand: rnd.Float64}).Handler()

	const trials = 4000
	counts := map[int]int{}
	for range trials {
		rec := do(t, h, http.MethodGet, "/status/200:1,500:1", nil, nil)
		counts[rec.Code]++
	}
	require.Len(t, counts, 2)
	for _, code := range []int{200, 500} {
		share := float64(counts[code]) / trials
		assert.InDelta(t, 0.5, share, 0.05, strconv.Itoa(code))
	}
}

func TestResponseHeaders(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/response-headers?X-Foo=bar&X-Multi=1&X-Multi=2&Content-Length=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bar", rec.Header().Get("X-Foo"))
	assert.Equal(t, []string{"1", "2"}, rec.Header().Values("X-Multi"))
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), rec.Header().Get("Content-Length"))

	got := decode(t, rec)
	assert.Equal(t, "bar", got["X-Foo"])
	assert.Equal(t, []any{"1", "2"}, got["X-Multi"])
	assert.Equal(t, "application/json", got["Content-Type"])
	assert.Equal(t, strconv.Itoa(rec.Body.Len()), got["Content-Length"])
}

func TestHeaderFixedPoint_Settles(t *testing.T) {
	t.Parallel()

	// Lengths around a digit boundary exercise the extra pass.
	for pad := 60; pad < 140; pad++ {
		q := map[string][]string{"X-Pad": {strings.Repeat("p", pad)}}
		hdr, body := headerFixedPoint(http.Header{}, q)
		assert.Equal(t, strconv.Itoa(len(body)), hdr.Get("Content-Length"))
		assert.Equal(t, body, encodeHeaders(hdr))
	}
}

func TestHeaderFixedPoint_KeepsHeadersAlreadySet(t *testing.T) {
	t.Parallel()

	base := http.Header{}
	base.Set("X-Request-Id", "abc")
	base.Set("Vary", "Origin")

	hdr, body := headerFixedPoint(base, map[string][]string{"Vary": {"Accept"}})
	assert.Equal(t, []string{"Origin", "Accept"}, hdr.Values("Vary"))
	assert.Equal(t, "Origin", base.Get("Vary"), "base must not be modified")

	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "abc", got["X-Request-Id"])
	assert.Equal(t, []any{"Origin", "Accept"}, got["Vary"])
}

func TestCookies(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/cookies", nil)
	req.AddCookie(&http.Cookie{Name: "k", Value: "v"})
	req.AddCookie(&http.Cookie{Name: "k", Value: "second"})
	req.AddCookie(&http.Cookie{Name: "__utma", Value: "tracked"})
	req.AddCookie(&http.Cookie{Name: "_gauges_unique_day", Value: "1"})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	assert.Equal(t, map[string]any{"k": "v"}, decode(t, rec)["cookies"])

	req.URL.RawQuery = "show_env"
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	assert.Equal(t, map[string]any{"k": "v", "__utma": "tracked", "_gauges_unique_day": "1"}, decode(t, rec)["cookies"])
}

func TestCookiesSet(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/cookies/set?b=2&a=1", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cookies", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Equal(t, "1", cookies[0].Value)
	assert.False(t, cookies[0].Secure)
	assert.Equal(t, "/", cookies[0].Path)

	rec = do(t, app, http.MethodGet, "/cookies/set?a=1", nil, map[string]string{"X-Forwarded-Proto": "https"})
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestCookiesDelete(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/cookies/delete?a", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/cookies", rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "a", cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestDelay(t *testing.T) {
	t.Parallel()

	h := New(Options{MaxDelay: 30 * time.Millisecond}).Handler()

	start := time.Now()
	rec := do(t, h, http.MethodGet, "/delay/5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Less(t, time.Since(start), 3*time.Second)
	got := decode(t, rec)
	assert.Equal(t, "http://example.com/delay/5", got["url"])
	assert.NotContains(t, got, "json")

	rec = do(t, h, http.MethodGet, "/delay/soon", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelay_DoesNotBlockOtherRequests(t *testing.T) {
	t.Parallel()

	h := New(Options{MaxDelay: 300 * time.Millisecond}).Handler()

	started := make(chan struct{})
	done := make(chan int, 1)
	go func() {
		close(started)
		done <- do(t, h, http.MethodGet, "/delay/1", nil, nil).Code
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	begin := time.Now()
	rec := do(t, h, http.MethodGet, "/get", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)

	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(3 * time.Second):
		t.Fatal("delayed request never finished")
	}
}

func TestDelay_ClientGone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/delay/1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	assert.Empty(t, rec.Body.String())
	assert.False(t, rec.Flushed)
}

func TestBase64(t *testing.T) {
	t.Parallel()

	rec := do(t, app, http.MethodGet, "/base64-encode/hello%20world", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "aGVsbG8gd29ybGQ=", rec.Body.String())

	rec = do(t, app, http.MethodGet, "/base64-decode/aGVsbG8gd29ybGQ=", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", rec.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = do(t, app, http.MethodGet, "/base64-decode/__w", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0xff, 0xff}, rec.Body.Bytes())

	rec = do(t, app, http.MethodGet, "/base64-decode/not*base64", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Incorrect Base64 data"))
}

func TestRoutes_NamesUnique(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, rt := range New(Options{}).Routes() {
		assert.False(t, seen[rt.Name], rt.Name)
		seen[rt.Name] = true
		assert.NotEmpty(t, rt.Summary, rt.Name)
	}
	assert.True(t, seen["get"])
}
