package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"

// googleBooksVolumesResp is the response from GET /volumes?q=isbn:...
type googleBooksVolumesResp struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// BookMetadata is the catalog data we copy onto a new book.
type BookMetadata struct {
	Title       string
	Authors     []string
	Publisher   string
	PublishDate string
	ISBN        string
	CoverURL    string
}

// MetadataClient looks books up by ISBN on the Google Books volumes API.
type MetadataClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewMetadataClient uses a short timeout so a slow lookup never stalls book creation for long.
func NewMetadataClient() *MetadataClient {
	return &MetadataClient{
		BaseURL: googleBooksBase,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func normalizeISBN(isbn string) string {
	return strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
}

func (c *MetadataClient) LookupISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = normalizeISBN(isbn)
	if isbn == "" {
		return nil, fmt.Errorf("isbn is required")
	}
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned %d", resp.StatusCode)
	}
	var data googleBooksVolumesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, fmt.Errorf("no volume found for isbn %s", isbn)
	}
	vi := data.Items[0].VolumeInfo
	meta := &BookMetadata{
		Title:       vi.Title,
		Authors:     vi.Authors,
		Publisher:   vi.Publisher,
		PublishDate: vi.PublishedDate,
		ISBN:        isbn,
	}
	if vi.Subtitle != "" {
		meta.Title = meta.Title + ": " + vi.Subtitle
	}
	for _, id := range vi.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			meta.ISBN = id.Identifier
			break
		}
	}
	meta.CoverURL = openLibraryCoverURL(meta.ISBN, "M")
	return meta, nil
}

// openLibraryCoverURL returns a direct cover image URL by ISBN. Size is S, M or L.
func openLibraryCoverURL(isbn, size string) string {
	clean := normalizeISBN(isbn)
	if clean == "" {
		return ""
	}
	return "https://covers.openlibrary.org/b/isbn/" + url.PathEscape(clean) + "-" + size + ".jpg"
}
