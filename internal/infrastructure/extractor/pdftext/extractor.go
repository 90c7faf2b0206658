// Package pdftext is the fallback element source used when no
// partition service is configured. It yields one body element per
// page, so structural typing is lost but ingestion still works.
package pdftext

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/finraglab/finrag/internal/core/domain"
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, path, sourceDoc string) ([]domain.Element, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var elements []domain.Element
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", pageNum, err)
		}
		text = strings.Join(strings.Fields(text), " ")
		if text == "" {
			continue
		}
		elements = append(elements, domain.Element{
			SourceDoc: sourceDoc,
			Type:      domain.ElementBody,
			Text:      text,
			Page:      pageNum,
		})
	}
	return elements, nil
}
