package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare 403 ray header", 403, http.Header{"Cf-Ray": {"abc123"}}, "", BlockCloudflare},
		{"cloudflare 503 server header", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"cloudflare challenge body", 200, http.Header{}, "<title>Just a moment...</title>", BlockCloudflare},
		{"captcha body", 200, http.Header{}, "<html><body>Please complete the reCAPTCHA to continue</body></html>", BlockCaptcha},
		{"robot check", 200, http.Header{}, "<p>Are you a robot?</p>", BlockCaptcha},
		{"js shell", 200, http.Header{}, "<html><noscript>Enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"meta refresh", 200, http.Header{}, `<meta http-equiv="refresh" content="0;url=/x">`, BlockJSShell},
		{"rate limited", 429, http.Header{}, "slow down", BlockRateLimited},
		{"plain 403", 403, http.Header{}, "<h1>Forbidden</h1>", BlockNone},
		{"plain 404", 404, http.Header{}, "<h1>Not Found</h1>", BlockNone},
		{"clean page", 200, http.Header{}, "<html><body><p>Interview process: three rounds.</p></body></html>", BlockNone},
		{"nil header", 200, nil, "<p>ok</p>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectBlock(tt.status, tt.header, []byte(tt.body)))
		})
	}
}

func TestDetectBlock_LargePageWithCaptchaWidget(t *testing.T) {
	body := "<html><body>" + strings.Repeat("<p>Real review content.</p>", 3000) +
		`<div class="g-recaptcha"></div></body></html>`
	assert.Equal(t, BlockNone, DetectBlock(200, http.Header{}, []byte(body)))
}
