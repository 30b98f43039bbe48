package news

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/velikandr/analyst-bot/internal/errs"
	"github.com/velikandr/analyst-bot/internal/models"
)

const defaultTitle = "Без заголовка"

// Client performs news lookups against a NewsAPI-compatible endpoint.
type Client struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
	logger   *zap.Logger
}

func New(apiKey, baseURL, language string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		apiKey:   apiKey,
		baseURL:  baseURL,
		language: language,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Search runs a single GET for the topic and returns up to limit articles
// with HTML-escaped titles and URLs. A missing credential fails before any
// network call.
func (c *Client) Search(ctx context.Context, topic string, limit int) ([]models.Article, error) {
	if c.apiKey == "" {
		return nil, &errs.ConfigError{Key: "NEWS_API_KEY"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, &errs.ServiceError{Service: "news", Err: err}
	}
	q := req.URL.Query()
	q.Set("q", topic)
	q.Set("pageSize", strconv.Itoa(limit))
	q.Set("language", c.language)
	q.Set("apiKey", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errs.ServiceError{Service: "news", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errs.ServiceError{
			Service: "news",
			Err:     fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body),
		}
	}

	var payload struct {
		Articles []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &errs.ServiceError{Service: "news", Err: err}
	}

	if len(payload.Articles) == 0 {
		c.logger.Info("News search returned no articles", zap.String("topic", topic))
	}

	articles := make([]models.Article, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		title := a.Title
		if title == "" {
			title = defaultTitle
		}
		articles = append(articles, models.Article{
			Title: html.EscapeString(title),
			URL:   html.EscapeString(a.URL),
		})
	}
	return articles, nil
}
