package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/younger-self-kit/pkg/domain"
)

// ImageCacher は取得済み画像バイト列のキャッシュ操作を抽象化するインターフェースです。
type ImageCacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

// Loader は URI から元画像を取得するアップロード側コラボレーターです。
// gs:// は InputReader、http(s) は HTTP クライアント経由で読み込みます。
type Loader struct {
	reader     remoteio.InputReader
	httpClient httpkit.ClientInterface
	cache      ImageCacher
	expiration time.Duration
}

// NewLoader は依存関係を注入して Loader を初期化します。
func NewLoader(reader remoteio.InputReader, httpClient httpkit.ClientInterface, cache ImageCacher, cacheTTL time.Duration) (*Loader, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("httpClient is required")
	}
	// cache は nil を許容（キャッシュなし動作）

	return &Loader{
		reader:     reader,
		httpClient: httpClient,
		cache:      cache,
		expiration: cacheTTL,
	}, nil
}

// Load は URI から画像を取得し、MIME タイプを判定して SourceImage を返します。
// 取得失敗は domain.ErrImageRead、画像以外のデータは domain.ErrImageDecode として返します。
func (l *Loader) Load(ctx context.Context, rawURI string) (*domain.SourceImage, error) {
	if l.cache != nil {
		if val, ok := l.cache.Get(rawURI); ok {
			if img, ok := val.(*domain.SourceImage); ok {
				return img, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "uri", rawURI)
		}
	}

	data, err := l.fetch(ctx, rawURI)
	if err != nil {
		return nil, err
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: MIMEタイプが画像ではありません (%s)", domain.ErrImageDecode, mimeType)
	}

	img := &domain.SourceImage{Data: data, MimeType: mimeType}
	if l.cache != nil {
		l.cache.Set(rawURI, img, l.expiration)
	}
	return img, nil
}

func (l *Loader) fetch(ctx context.Context, rawURI string) ([]byte, error) {
	if strings.HasPrefix(rawURI, "gs://") {
		rc, err := l.reader.Open(ctx, rawURI)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrImageRead, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrImageRead, err)
		}
		return data, nil
	}

	if safe, err := isSafeURL(rawURI); err != nil || !safe {
		return nil, fmt.Errorf("%w: 安全ではないURLが指定されました: %v", domain.ErrImageRead, err)
	}

	data, err := l.httpClient.FetchBytes(ctx, rawURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrImageRead, err)
	}
	return data, nil
}

// isSafeURL は SSRF 対策として URL を検証します。
// 名前解決されたすべての IP アドレスに対してプライベート IP チェックを行います。
func isSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP

	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolvedIPs, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("ホスト '%s' の名前解決に失敗しました: %w", host, err)
		}
		ips = resolvedIPs
	}

	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}

	return true, nil
}
