package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// URLGuard は外部URLから領収書画像を取得する際のSSRF対策を提供する。
type URLGuard interface {
	// ValidateURL はDNS解決前の静的チェックを行う。
	ValidateURL(rawURL string) error
	// Client は接続先IPを検証するHTTPクライアントを返す。
	Client() *http.Client
}

var receiptSchemes = []string{"http", "https"}

// privatePrefixes は静的チェックで拒否するアドレス範囲。
// 名前解決後の検証はsafeurlのDialerが行う。
var privatePrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

type urlGuard struct {
	client *http.Client
}

// NewURLGuard はURLGuardを生成する。timeoutは1回の取得全体の上限。
func NewURLGuard(timeout time.Duration) URLGuard {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(receiptSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &urlGuard{client: safeurl.Client(config).Client}
}

func (g *urlGuard) Client() *http.Client {
	return g.client
}

func (g *urlGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q", u.Scheme)
	}

	host := u.Hostname()
	switch {
	case host == "":
		return fmt.Errorf("empty host in URL: %s", rawURL)
	case strings.EqualFold(host, "localhost"), strings.HasSuffix(strings.ToLower(host), ".localhost"):
		return fmt.Errorf("blocked host: %s", host)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range privatePrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked IP address: %s", addr)
			}
		}
	}
	return nil
}
