package reddit

import (
	"strings"
	"testing"
)

const listingFixture = `{
  "data": {
    "children": [
      {"kind": "t3", "data": {"id": "aaa", "title": "First &amp; best", "selftext": "plain body", "author": "alice", "ups": 120, "downs": 3, "score": 117, "num_comments": 42, "url": "https://example.com/a", "permalink": "/r/artificial/comments/aaa/first/", "created_utc": 1756700000, "stickied": false}},
      {"kind": "t3", "data": {"id": "bbb", "title": "Second", "selftext_html": "&lt;p&gt;rich &lt;b&gt;body&lt;/b&gt;&lt;/p&gt;", "author": "bob", "score": 5, "num_comments": 0, "permalink": "/r/artificial/comments/bbb/second/", "created_utc": 1756700100}},
      {"kind": "t3", "data": {"id": "", "title": "no id"}},
      {"kind": "t3", "data": "broken"},
      {"kind": "t5", "data": {"id": "sub", "title": "не пост"}},
      {"kind": "t3", "data": {"id": "ccc", "title": "Third", "author": "carol", "score": 900, "num_comments": 77, "permalink": "/r/artificial/comments/ccc/third/", "created_utc": 1756700200, "stickied": true}}
    ]
  }
}`

func TestParseListing(t *testing.T) {
	posts, skipped := ParseListing([]byte(listingFixture), "artificial")
	if len(posts) != 3 {
		t.Fatalf("ожидали 3 поста, получили %d", len(posts))
	}
	if skipped != 2 {
		t.Fatalf("ожидали 2 пропуска, получили %d", skipped)
	}

	first := posts[0]
	if first.PostID != "aaa" || first.Source != "artificial" {
		t.Fatalf("неверная идентификация поста: %+v", first)
	}
	if first.Title != "First & best" {
		t.Fatalf("сущности должны быть декодированы, получили %q", first.Title)
	}
	if first.Permalink != "https://www.reddit.com/r/artificial/comments/aaa/first/" {
		t.Fatalf("permalink должен стать абсолютным, получили %q", first.Permalink)
	}
	if first.Score != 117 || first.CommentCount != 42 {
		t.Fatalf("неверные счётчики: %+v", first)
	}
	if first.CreatedAt.Unix() != 1756700000 {
		t.Fatalf("неверное время создания: %v", first.CreatedAt)
	}

	second := posts[1]
	if second.BodyText != "rich body" {
		t.Fatalf("selftext_html должен быть очищен от разметки, получили %q", second.BodyText)
	}

	if !posts[2].IsHot {
		t.Fatalf("закреплённый пост должен помечаться горячим")
	}
}

func TestParseListingHTMLFallback(t *testing.T) {
	page := `<html><body>
	  <div class="thing" data-fullname="t3_xyz">
	    <a class="title" href="https://example.com/x">Fallback title</a>
	    <a class="author">dave</a>
	    <div class="score unvoted" title="64">64</div>
	    <a class="comments" href="https://www.reddit.com/r/artificial/comments/xyz/">12 comments</a>
	    <time datetime="2026-08-31T10:00:00Z"></time>
	  </div>
	  <div class="thing"><a class="title">без идентификатора</a></div>
	</body></html>`

	posts, skipped := ParseListing([]byte(page), "artificial")
	if len(posts) != 1 {
		t.Fatalf("ожидали 1 пост из HTML, получили %d", len(posts))
	}
	if skipped != 1 {
		t.Fatalf("ожидали 1 пропуск, получили %d", skipped)
	}
	p := posts[0]
	if p.PostID != "xyz" || p.Title != "Fallback title" || p.Author != "dave" {
		t.Fatalf("неверный разбор HTML: %+v", p)
	}
	if p.Score != 64 || p.CommentCount != 12 {
		t.Fatalf("неверные счётчики из HTML: %+v", p)
	}
	if p.CreatedAt.Format("2006-01-02") != "2026-08-31" {
		t.Fatalf("неверное время из HTML: %v", p.CreatedAt)
	}
}

const commentsFixture = `[
  {"data": {"children": [{"kind": "t3", "data": {"id": "aaa"}}]}},
  {"data": {"children": [
    {"kind": "t1", "data": {"id": "c1", "author": "alice", "body": "top level", "score": 10, "parent_id": "t3_aaa", "created_utc": 1756700300, "replies": {"data": {"children": [
      {"kind": "t1", "data": {"id": "c2", "author": "bob", "body_html": "&lt;p&gt;nested&lt;/p&gt;", "score": 3, "parent_id": "t1_c1", "created_utc": 1756700400, "replies": ""}}
    ]}}}},
    {"kind": "more", "data": {"count": 5}},
    {"kind": "t1", "data": {"id": "c3", "author": "carol", "body": "sibling", "score": 1, "parent_id": "t3_aaa", "created_utc": 1756700500, "replies": ""}}
  ]}}
]`

func TestParseComments(t *testing.T) {
	comments, skipped := ParseComments([]byte(commentsFixture), "aaa")
	if skipped != 0 {
		t.Fatalf("не ожидали пропусков, получили %d", skipped)
	}
	if len(comments) != 3 {
		t.Fatalf("ожидали 3 комментария, получили %d", len(comments))
	}

	top := comments[0]
	if top.CommentID != "c1" || top.PostID != "aaa" || top.Depth != 0 || top.ParentID != "" {
		t.Fatalf("неверный комментарий верхнего уровня: %+v", top)
	}

	nested := comments[1]
	if nested.CommentID != "c2" || nested.Depth != 1 || nested.ParentID != "c1" {
		t.Fatalf("неверный вложенный комментарий: %+v", nested)
	}
	if nested.BodyText != "nested" {
		t.Fatalf("body_html должен быть очищен, получили %q", nested.BodyText)
	}

	if comments[2].CommentID != "c3" || comments[2].Depth != 0 {
		t.Fatalf("неверный последний комментарий: %+v", comments[2])
	}
}

func TestParseCommentsMalformed(t *testing.T) {
	for _, body := range []string{"not json", "[]", `[{"data":{"children":[]}}]`} {
		comments, skipped := ParseComments([]byte(body), "aaa")
		if len(comments) != 0 || skipped != 0 {
			t.Fatalf("для %q ожидали пустой результат, получили %d/%d", body, len(comments), skipped)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	cases := map[string]string{
		"&lt;p&gt;hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;": "hello world",
		"<script>alert(1)</script>plain":                    "plain",
		"no markup at all":                                  "no markup at all",
	}
	for input, expected := range cases {
		if got := StripMarkup(input); got != expected {
			t.Fatalf("для %q ожидали %q, получили %q", input, expected, got)
		}
	}
}

func TestListingURL(t *testing.T) {
	u := ListingURL("artificial", SortNew, 50)
	if !strings.Contains(u, "/r/artificial/new.json") || !strings.Contains(u, "limit=50") {
		t.Fatalf("неверный адрес листинга: %s", u)
	}
}
