package googlebooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/bookrec/catalog"
	"github.com/mohammad-safakhou/bookrec/internal/helpers"
	"github.com/mohammad-safakhou/bookrec/models"
	"github.com/mohammad-safakhou/bookrec/utils"
)

// DefaultEndpoint is the public volumes search endpoint.
const DefaultEndpoint = "https://www.googleapis.com/books/v1/volumes"

// maxResultsCap is the largest page the volumes API accepts.
const maxResultsCap = 40

// Options configure the Google Books client.
type Options struct {
	Endpoint       string
	APIKey         string // static key; takes precedence over the caller credential
	SendCredential bool   // forward the caller credential as the key parameter
	PrintType      string
	OrderBy        string
	SubjectSearch  bool // add a subject: qualifier when the term names a known genre
}

// Client searches the Google Books volumes API.
type Client struct {
	opts Options
	http *utils.HTTPClient
}

// New creates a Google Books catalog client.
func New(opts Options, httpc *utils.HTTPClient) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.PrintType == "" {
		opts.PrintType = "books"
	}
	if opts.OrderBy == "" {
		opts.OrderBy = "relevance"
	}
	return &Client{opts: opts, http: httpc}
}

type volumesResponse struct {
	TotalItems int               `json:"totalItems"`
	Items      []json.RawMessage `json:"items"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title         string   `json:"title"`
		Subtitle      string   `json:"subtitle"`
		Authors       []string `json:"authors"`
		Description   string   `json:"description"`
		AverageRating *float64 `json:"averageRating"`
		RatingsCount  *int     `json:"ratingsCount"`
		PublishedDate string   `json:"publishedDate"`
		Categories    []string `json:"categories"`
		InfoLink      string   `json:"infoLink"`
	} `json:"volumeInfo"`
	SearchInfo struct {
		TextSnippet string `json:"textSnippet"`
	} `json:"searchInfo"`
}

// Search issues one volumes lookup for term and maps the items to candidates.
func (c *Client) Search(ctx context.Context, term string, limit int, credential string) ([]models.BookCandidate, error) {
	term = utils.CompactSpaces(term)
	if term == "" {
		return nil, catalog.Fail(term, catalog.ErrEmptyTerm)
	}
	if limit <= 0 {
		return nil, catalog.Fail(term, catalog.ErrInvalidLimit)
	}
	if limit > maxResultsCap {
		limit = maxResultsCap
	}

	var raw volumesResponse
	if err := c.http.GetJSON(ctx, c.buildURL(term, limit, credential), nil, &raw); err != nil {
		return nil, catalog.Fail(term, err)
	}
	return mapVolumes(raw.Items), nil
}

func (c *Client) buildURL(term string, limit int, credential string) string {
	q := term
	if c.opts.SubjectSearch {
		if genre, ok := helpers.ExtractGenre(term); ok {
			q = fmt.Sprintf("%s subject:%q", term, genre)
		}
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("printType", c.opts.PrintType)
	params.Set("orderBy", c.opts.OrderBy)
	switch {
	case c.opts.APIKey != "":
		params.Set("key", c.opts.APIKey)
	case c.opts.SendCredential && strings.TrimSpace(credential) != "":
		params.Set("key", credential)
	}
	return fmt.Sprintf("%s?%s", c.opts.Endpoint, params.Encode())
}

// mapVolumes keeps the service order. Items that do not decode or have no
// title are dropped.
func mapVolumes(items []json.RawMessage) []models.BookCandidate {
	out := make([]models.BookCandidate, 0, len(items))
	for _, item := range items {
		var it volume
		if err := json.Unmarshal(item, &it); err != nil {
			continue
		}
		info := it.VolumeInfo
		title := strings.TrimSpace(info.Title)
		if title == "" {
			continue
		}
		if sub := strings.TrimSpace(info.Subtitle); sub != "" {
			title = title + ": " + sub
		}
		var rating *float64
		if info.AverageRating != nil && *info.AverageRating >= 0 && *info.AverageRating <= 5 {
			v := *info.AverageRating
			rating = &v
		}
		var count *int
		if info.RatingsCount != nil && *info.RatingsCount >= 0 {
			v := *info.RatingsCount
			count = &v
		}
		out = append(out, models.BookCandidate{
			ID:            strings.TrimSpace(it.ID),
			Title:         title,
			Authors:       append([]string(nil), info.Authors...),
			AverageRating: rating,
			RatingsCount:  count,
			Description:   helpers.PlainText(info.Description),
			PublishedDate: info.PublishedDate,
			Categories:    append([]string(nil), info.Categories...),
			InfoLink:      info.InfoLink,
			Snippet:       helpers.PlainText(it.SearchInfo.TextSnippet),
		})
	}
	return out
}
