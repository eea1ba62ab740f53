package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"ai-trend-scraper/internal/domain"
)

const baseURL = "https://www.reddit.com"

var stripPolicy = bluemonday.StrictPolicy()

// Sort — порядок выдачи листинга.
type Sort string

const (
	SortNew Sort = "new"
	SortHot Sort = "hot"
)

// ListingURL возвращает адрес JSON-листинга источника.
func ListingURL(source string, sort Sort, limit int) string {
	return fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", baseURL, source, sort, limit)
}

// CommentsURL возвращает адрес дерева комментариев поста.
func CommentsURL(source, postID string) string {
	return fmt.Sprintf("%s/r/%s/comments/%s.json?raw_json=1", baseURL, source, postID)
}

type listingPayload struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postPayload struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	SelfText     string  `json:"selftext"`
	SelfTextHTML string  `json:"selftext_html"`
	Author       string  `json:"author"`
	Ups          int     `json:"ups"`
	Downs        int     `json:"downs"`
	Score        int     `json:"score"`
	NumComments  int     `json:"num_comments"`
	URL          string  `json:"url"`
	Permalink    string  `json:"permalink"`
	CreatedUTC   float64 `json:"created_utc"`
	Stickied     bool    `json:"stickied"`
}

// ParseListing разбирает листинг в нормализованные посты. Некорректные
// элементы пропускаются и учитываются в счётчике, а не валят разбор;
// если тело вообще не JSON, пробуем HTML-разметку старого образца.
func ParseListing(body []byte, source string) (posts []domain.Post, skipped int) {
	var payload listingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return parseListingHTML(body, source)
	}
	for _, child := range payload.Data.Children {
		if child.Kind != "t3" {
			continue
		}
		var raw postPayload
		if err := json.Unmarshal(child.Data, &raw); err != nil {
			skipped++
			continue
		}
		if raw.ID == "" || raw.Title == "" {
			skipped++
			continue
		}
		posts = append(posts, normalizePost(raw, source))
	}
	return posts, skipped
}

func normalizePost(raw postPayload, source string) domain.Post {
	body := raw.SelfText
	if raw.SelfTextHTML != "" {
		body = StripMarkup(raw.SelfTextHTML)
	}
	permalink := raw.Permalink
	if permalink != "" && !strings.HasPrefix(permalink, "http") {
		permalink = baseURL + permalink
	}
	return domain.Post{
		PostID:       raw.ID,
		Source:       source,
		Title:        html.UnescapeString(raw.Title),
		BodyText:     body,
		Author:       raw.Author,
		Upvotes:      raw.Ups,
		Downvotes:    raw.Downs,
		Score:        raw.Score,
		CommentCount: raw.NumComments,
		ExternalURL:  raw.URL,
		Permalink:    permalink,
		CreatedAt:    time.Unix(int64(raw.CreatedUTC), 0).UTC(),
		IsHot:        raw.Stickied,
	}
}

// parseListingHTML — запасной разбор разметки старого образца
// (div.thing с data-fullname).
func parseListingHTML(body []byte, source string) (posts []domain.Post, skipped int) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0
	}
	doc.Find("div.thing").Each(func(_ int, sel *goquery.Selection) {
		fullname, _ := sel.Attr("data-fullname")
		id := strings.TrimPrefix(fullname, "t3_")
		title := strings.TrimSpace(sel.Find("a.title").First().Text())
		if id == "" || title == "" {
			skipped++
			return
		}
		score := 0
		if s, ok := sel.Find("div.score.unvoted").First().Attr("title"); ok {
			score, _ = strconv.Atoi(s)
		}
		comments := 0
		commentsText := sel.Find("a.comments").First().Text()
		if fields := strings.Fields(commentsText); len(fields) > 0 {
			comments, _ = strconv.Atoi(fields[0])
		}
		permalink, _ := sel.Find("a.comments").First().Attr("href")
		externalURL, _ := sel.Find("a.title").First().Attr("href")
		createdAt := time.Now().UTC()
		if ts, ok := sel.Find("time").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				createdAt = parsed.UTC()
			}
		}
		posts = append(posts, domain.Post{
			PostID:       id,
			Source:       source,
			Title:        title,
			Author:       strings.TrimSpace(sel.Find("a.author").First().Text()),
			Score:        score,
			Upvotes:      score,
			CommentCount: comments,
			ExternalURL:  externalURL,
			Permalink:    permalink,
			CreatedAt:    createdAt,
		})
	})
	return posts, skipped
}

type commentPayload struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	BodyHTML   string  `json:"body_html"`
	Ups        int     `json:"ups"`
	Downs      int     `json:"downs"`
	Score      int     `json:"score"`
	ParentID   string  `json:"parent_id"`
	CreatedUTC float64 `json:"created_utc"`
}

type commentNode struct {
	Kind string `json:"kind"`
	Data struct {
		commentPayload
		Replies json.RawMessage `json:"replies"`
	} `json:"data"`
}

type commentListing struct {
	Data struct {
		Children []commentNode `json:"children"`
	} `json:"data"`
}

// ParseComments разбирает дерево комментариев поста. Эндпоинт отдаёт пару
// листингов: сам пост и комментарии; обходим второй рекурсивно, считая
// глубину вложенности.
func ParseComments(body []byte, postID string) (comments []domain.Comment, skipped int) {
	var listings []commentListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return nil, 0
	}
	if len(listings) < 2 {
		return nil, 0
	}
	return walkComments(listings[1].Data.Children, postID, 0)
}

func walkComments(nodes []commentNode, postID string, depth int) (comments []domain.Comment, skipped int) {
	for _, node := range nodes {
		if node.Kind != "t1" {
			continue
		}
		data := node.Data
		if data.ID == "" {
			skipped++
			continue
		}
		body := data.Body
		if data.BodyHTML != "" {
			body = StripMarkup(data.BodyHTML)
		}
		parent := ""
		if strings.HasPrefix(data.ParentID, "t1_") {
			parent = strings.TrimPrefix(data.ParentID, "t1_")
		}
		comments = append(comments, domain.Comment{
			CommentID: data.ID,
			PostID:    postID,
			ParentID:  parent,
			Author:    data.Author,
			BodyText:  body,
			Upvotes:   data.Ups,
			Downvotes: data.Downs,
			Score:     data.Score,
			CreatedAt: time.Unix(int64(data.CreatedUTC), 0).UTC(),
			Depth:     depth,
		})
		if len(data.Replies) > 0 && !bytes.Equal(bytes.TrimSpace(data.Replies), []byte(`""`)) {
			var nested commentListing
			if err := json.Unmarshal(data.Replies, &nested); err == nil {
				child, childSkipped := walkComments(nested.Data.Children, postID, depth+1)
				comments = append(comments, child...)
				skipped += childSkipped
			}
		}
	}
	return comments, skipped
}

// StripMarkup убирает HTML-разметку и декодирует сущности.
func StripMarkup(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(html.UnescapeString(s))))
}
