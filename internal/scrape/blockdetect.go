package scrape

import (
	"bytes"
	"net/http"
)

// BlockType describes the kind of anti-bot response detected.
type BlockType string

const (
	BlockNone        BlockType = ""
	BlockCloudflare  BlockType = "cloudflare"
	BlockCaptcha     BlockType = "captcha"
	BlockJSShell     BlockType = "js_shell"
	BlockRateLimited BlockType = "rate_limited"
)

// Interstitial pages are small. Larger bodies that merely embed a captcha
// widget (e.g. a comment form) are real content.
const (
	challengeMaxBody = 50 << 10
	shellMaxBody     = 2000
)

var (
	cloudflareMarkers = [][]byte{
		[]byte("checking your browser"),
		[]byte("cf-browser-verification"),
		[]byte("cf-challenge"),
		[]byte("just a moment..."),
	}
	captchaMarkers = [][]byte{
		[]byte("captcha"),
		[]byte("are you a robot"),
		[]byte("verify you are human"),
	}
)

// DetectBlock inspects a response for signs of anti-bot protection. It
// returns BlockNone for ordinary pages, including ordinary error pages.
func DetectBlock(status int, header http.Header, body []byte) BlockType {
	if status == http.StatusTooManyRequests {
		return BlockRateLimited
	}
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("Cf-Ray") != "" || header.Get("Cf-Cache-Status") != "" ||
			header.Get("Server") == "cloudflare" || header.Get("Cf-Mitigated") != "" {
			return BlockCloudflare
		}
	}

	if len(body) > challengeMaxBody {
		return BlockNone
	}
	lower := bytes.ToLower(body)

	for _, m := range cloudflareMarkers {
		if bytes.Contains(lower, m) {
			return BlockCloudflare
		}
	}
	for _, m := range captchaMarkers {
		if bytes.Contains(lower, m) {
			return BlockCaptcha
		}
	}

	if len(body) < shellMaxBody {
		if bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("javascript")) {
			return BlockJSShell
		}
		if bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
			return BlockJSShell
		}
	}
	return BlockNone
}
