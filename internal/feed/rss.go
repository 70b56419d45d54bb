// Package feed は公開済み投稿のRSS 2.0フィードを生成する。
package feed

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/hitoshi/blogman/internal/model"
)

// DefaultItemLimit はフィードに含める投稿の最大件数。
const DefaultItemLimit = 20

// ContentType はRSSレスポンスのContent-Type。
const ContentType = "application/rss+xml; charset=utf-8"

const dcNamespace = "http://purl.org/dc/elements/1.1/"

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	DC      string     `xml:"xmlns:dc,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	Creator     string  `xml:"dc:creator,omitempty"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// Channel はフィード全体のメタデータ。
type Channel struct {
	Title       string
	Description string
	// BaseURL は末尾スラッシュなしの公開URL。各投稿のリンクは BaseURL/posts/{id} となる。
	BaseURL string
	// Sanitizer はdescriptionに埋め込むHTMLの最終サニタイズ。nilの場合はエスケープのみ行う。
	Sanitizer HTMLSanitizer
}

// HTMLSanitizer は出力するHTMLを安全化する。security.ContentSanitizerServiceが満たす。
type HTMLSanitizer interface {
	Sanitize(rawHTML string) string
}

// DescriptionHTML はプレーンテキストの本文をitemのdescription用HTMLに変換する。
// 本文はエスケープされ、空行で段落に、改行で<br>に分割される。
func DescriptionHTML(content string, sanitizer HTMLSanitizer) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var b strings.Builder
	for _, para := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}

	if sanitizer == nil {
		return b.String()
	}
	return sanitizer.Sanitize(b.String())
}

// PostLink は投稿の公開URLを返す。
func PostLink(baseURL, postID string) string {
	return fmt.Sprintf("%s/posts/%s", baseURL, postID)
}

// WriteRSS は投稿一覧をRSS 2.0として書き出す。
// postsは新しい順に並んでいることを前提とし、先頭の作成日時をlastBuildDateとする。
func WriteRSS(w io.Writer, ch Channel, posts []*model.PostWithAuthor) error {
	doc := rssDocument{
		Version: "2.0",
		DC:      dcNamespace,
		Channel: rssChannel{
			Title:       ch.Title,
			Link:        ch.BaseURL + "/",
			Description: ch.Description,
			Items:       make([]rssItem, 0, len(posts)),
		},
	}

	if len(posts) > 0 {
		doc.Channel.LastBuildDate = posts[0].UpdatedAt.UTC().Format(time.RFC1123Z)
	}

	for _, p := range posts {
		link := PostLink(ch.BaseURL, p.ID)
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Description: DescriptionHTML(p.Content, ch.Sanitizer),
			Creator:     p.AuthorUsername,
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("failed to write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode rss: %w", err)
	}
	return enc.Flush()
}
