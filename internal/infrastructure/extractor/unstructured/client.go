// Package unstructured extracts typed elements from a filing via an
// unstructured-io partition service.
package unstructured

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/finraglab/finrag/internal/core/domain"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type partitionElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber int    `json:"page_number"`
		TextAsHTML string `json:"text_as_html"`
	} `json:"metadata"`
}

func (c *Client) Extract(ctx context.Context, path, sourceDoc string) ([]domain.Element, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open filing: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("build multipart: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy filing: %w", err)
	}
	writer.WriteField("strategy", "hi_res")
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/general/v0/general", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call partition service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("partition service: status %d: %s", resp.StatusCode, data)
	}

	var parts []partitionElement
	if err := json.NewDecoder(resp.Body).Decode(&parts); err != nil {
		return nil, fmt.Errorf("decode partition response: %w", err)
	}

	elements := make([]domain.Element, 0, len(parts))
	for _, p := range parts {
		page := p.Metadata.PageNumber
		if page <= 0 {
			page = 1
		}
		elements = append(elements, domain.Element{
			SourceDoc: sourceDoc,
			Type:      elementType(p.Type),
			Text:      normalizeText(p.Text),
			Page:      page,
			TableHTML: p.Metadata.TextAsHTML,
		})
	}
	return elements, nil
}

// elementType maps partition categories onto the coarse types the
// chunker understands.
func elementType(category string) domain.ElementType {
	switch category {
	case "Title":
		return domain.ElementTitle
	case "Table":
		return domain.ElementTable
	case "Header", "Footer", "PageBreak", "PageNumber":
		return domain.ElementNoise
	default:
		return domain.ElementBody
	}
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
