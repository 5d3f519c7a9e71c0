// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuardService は外部API呼び出し用HTTPクライアントの生成インターフェース。
// カタログプロバイダーとタグ生成モデルへの全アウトバウンド通信で使用される。
type OutboundGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// プロバイダーのレスポンスJSONに含まれるURL（ポスター画像等）を後続処理が
	// 辿る可能性があるため、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストはDialerレベルでブロックされる。
	// DNS再バインディング攻撃への対策も有効化される。
	// レスポンスボディはmaxBodySizeバイトで打ち切られ、超過時は読み取りエラーになる。
	NewSafeClient(timeout time.Duration, maxBodySize int64) *http.Client
}

// allowedSchemes はアウトバウンド通信で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// outboundGuard はOutboundGuardServiceの実装。
type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardServiceの新しいインスタンスを生成する。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//   - メタデータIPアドレス (169.254.169.254)
//
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func (g *outboundGuard) NewSafeClient(timeout time.Duration, maxBodySize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	client := wrappedClient.Client
	client.Transport = &bodyLimitTransport{next: client.Transport, maxBytes: maxBodySize}
	return client
}

// bodyLimitTransport はレスポンスボディの読み取りサイズを制限するRoundTripper。
// 巨大な（または無限の）レスポンスを返す外部APIからメモリを守る。
type bodyLimitTransport struct {
	next     http.RoundTripper
	maxBytes int64
}

// RoundTrip はレスポンスボディをmaxBytesで打ち切るリーダーに差し替える。
// 上限を超えて読み取ろうとするとエラーになり、呼び出し側のJSONデコードが
// 失敗してプロバイダーごとの縮退動作（空結果）に落ちる。
func (t *bodyLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = http.MaxBytesReader(nil, resp.Body, t.maxBytes)
	return resp, nil
}

// compile-time interface check
var _ OutboundGuardService = (*outboundGuard)(nil)
