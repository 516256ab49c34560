package proxy

import (
	"net/http"
	"strings"
)

// hopHeaders are connection-level headers that are never forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Identity headers set on forwarded requests.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

// copyHeaders copies src into dst without hop-by-hop headers, headers named
// in Connection, or the extra names given.
func copyHeaders(dst, src http.Header, drop ...string) {
	for name, values := range src {
		dst[name] = append([]string(nil), values...)
	}

	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				dst.Del(name)
			}
		}
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	for _, h := range drop {
		dst.Del(h)
	}
}
