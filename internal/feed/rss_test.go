package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/security"
)

func samplePosts() []*model.PostWithAuthor {
	older := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)
	return []*model.PostWithAuthor{
		{
			Post: model.Post{
				ID: "p2", Title: "Second & last", Content: "hello <b>world</b>",
				Published: true, AuthorID: "u1", CreatedAt: newer, UpdatedAt: newer,
			},
			AuthorUsername: "alice",
		},
		{
			Post: model.Post{
				ID: "p1", Title: "First", Content: "plain",
				Published: true, AuthorID: "u2", CreatedAt: older, UpdatedAt: older,
			},
			AuthorUsername: "bob",
		},
	}
}

// TestWriteRSS_ParsesAsRSS は出力がRSS 2.0として解析できることを検証する。
func TestWriteRSS_ParsesAsRSS(t *testing.T) {
	var buf bytes.Buffer
	ch := Channel{
		Title: "blogman", Description: "latest posts", BaseURL: "https://blog.example.com",
		Sanitizer: security.NewContentSanitizer(),
	}

	if err := WriteRSS(&buf, ch, samplePosts()); err != nil {
		t.Fatalf("WriteRSS() error = %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(buf.String())
	if err != nil {
		t.Fatalf("gofeed failed to parse output: %v\n%s", err, buf.String())
	}

	if parsed.FeedType != "rss" {
		t.Errorf("FeedType = %q, want rss", parsed.FeedType)
	}
	if parsed.Title != "blogman" {
		t.Errorf("Title = %q, want blogman", parsed.Title)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(parsed.Items))
	}

	first := parsed.Items[0]
	if first.Title != "Second & last" {
		t.Errorf("Items[0].Title = %q", first.Title)
	}
	if first.Link != "https://blog.example.com/posts/p2" {
		t.Errorf("Items[0].Link = %q", first.Link)
	}
	if first.Description != "<p>hello &lt;b&gt;world&lt;/b&gt;</p>" {
		t.Errorf("Items[0].Description = %q", first.Description)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Items[0].PublishedParsed = %v", first.PublishedParsed)
	}
	if first.Author == nil || first.Author.Name != "alice" {
		t.Errorf("Items[0].Author = %+v, want alice", first.Author)
	}
}

// TestWriteRSS_Empty は投稿がない場合も有効なフィードを返すことを検証する。
func TestWriteRSS_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRSS(&buf, Channel{Title: "blogman", BaseURL: "http://localhost:8080"}, nil); err != nil {
		t.Fatalf("WriteRSS() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "<?xml") {
		t.Error("expected XML declaration")
	}

	parsed, err := gofeed.NewParser().ParseString(buf.String())
	if err != nil {
		t.Fatalf("gofeed failed to parse output: %v", err)
	}
	if len(parsed.Items) != 0 {
		t.Errorf("len(Items) = %d, want 0", len(parsed.Items))
	}
}

func TestPostLink(t *testing.T) {
	if got := PostLink("https://b.example", "abc"); got != "https://b.example/posts/abc" {
		t.Errorf("PostLink() = %q", got)
	}
}

func TestDescriptionHTML(t *testing.T) {
	sanitizer := security.NewContentSanitizer()
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"comparison operators", "1 < 2 & 3 > 0", "<p>1 &lt; 2 &amp; 3 &gt; 0</p>"},
		{"generic type", "Use Vec<T> in Rust", "<p>Use Vec&lt;T&gt; in Rust</p>"},
		{"heart", "<3", "<p>&lt;3</p>"},
		{"script tag", "<script>alert(1)</script>", "<p>&lt;script&gt;alert(1)&lt;/script&gt;</p>"},
		{"paragraphs", "first\r\n\r\nsecond", "<p>first</p><p>second</p>"},
		{"blank only", " \n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DescriptionHTML(tt.content, sanitizer); got != tt.want {
				t.Errorf("DescriptionHTML(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}

func TestDescriptionHTML_LineBreaks(t *testing.T) {
	got := DescriptionHTML("a\nb", nil)
	if got != "<p>a<br>b</p>" {
		t.Errorf("DescriptionHTML() = %q", got)
	}

	sanitized := DescriptionHTML("a\nb", security.NewContentSanitizer())
	if !strings.HasPrefix(sanitized, "<p>a<br") || strings.Contains(sanitized, "&lt;br") {
		t.Errorf("sanitized DescriptionHTML() = %q, want <br> kept", sanitized)
	}
}

// TestWriteRSS_DescriptionPassesThroughSanitizer はdescriptionが必ずサニタイザーを通ることを検証する。
func TestWriteRSS_DescriptionPassesThroughSanitizer(t *testing.T) {
	stub := stubSanitizer{}
	var buf bytes.Buffer
	ch := Channel{Title: "blogman", BaseURL: "http://localhost:8080", Sanitizer: stub}

	if err := WriteRSS(&buf, ch, samplePosts()); err != nil {
		t.Fatalf("WriteRSS() error = %v", err)
	}
	parsed, err := gofeed.NewParser().ParseString(buf.String())
	if err != nil {
		t.Fatalf("gofeed failed to parse output: %v", err)
	}
	for _, item := range parsed.Items {
		if item.Description != "[sanitized]" {
			t.Errorf("Description = %q, want sanitizer output", item.Description)
		}
	}
}

type stubSanitizer struct{}

func (stubSanitizer) Sanitize(string) string { return "[sanitized]" }
