// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はフィードに出力するHTMLをサニタイズし、
// 閲覧者をXSSから保護する。
package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// codeLanguageClass はコードブロックの言語指定クラス（例: language-go）にマッチする。
var codeLanguageClass = regexp.MustCompile(`^language-[a-zA-Z0-9_+-]+$`)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// RSSのdescriptionを生成する際に使用される。
type ContentSanitizerService interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemonday.Policyはスレッドセーフであり、1つのインスタンスを共有できる。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// ポリシーはbluemondayのUGCポリシーを基本とし、次を追加する:
//   - 外部リンクに target="_blank" と rel="nofollow noreferrer noopener" を付与
//   - 画像・リンクのスキームは http, https, mailto のみ
//   - class属性はコードブロックの言語指定（language-*）のみ許可
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.UGCPolicy()

	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var _ ContentSanitizerService = (*contentSanitizer)(nil)
