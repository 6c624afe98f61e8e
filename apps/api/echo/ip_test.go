package echoapi

import (
	"net"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_clientIPExtractor(t *testing.T) {
	_, proxy, _ := net.ParseCIDR("203.0.113.0/24")

	tests := []struct {
		name       string
		proxies    []*net.IPNet
		remoteAddr string
		xff        string
		want       string
	}{
		{name: "no proxies", remoteAddr: "198.51.100.7:5000", xff: "1.2.3.4", want: "198.51.100.7"},
		{name: "private peer is not a proxy", proxies: []*net.IPNet{proxy}, remoteAddr: "10.0.0.1:5000", xff: "1.2.3.4", want: "10.0.0.1"},
		{name: "untrusted peer", proxies: []*net.IPNet{proxy}, remoteAddr: "198.51.100.7:5000", xff: "1.2.3.4", want: "198.51.100.7"},
		{name: "trusted proxy", proxies: []*net.IPNet{proxy}, remoteAddr: "203.0.113.5:5000", xff: "1.2.3.4", want: "1.2.3.4"},
		{
			name: "spoofed chain behind proxy", proxies: []*net.IPNet{proxy},
			remoteAddr: "203.0.113.5:5000", xff: "185.71.76.1, 198.51.100.9", want: "198.51.100.9",
		},
		{name: "no header", proxies: []*net.IPNet{proxy}, remoteAddr: "203.0.113.5:5000", want: "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientIPExtractor(tt.proxies)(req))
		})
	}
}
