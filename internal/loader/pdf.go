package loader

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts plain text from a PDF, one document per page, in page order.
func loadPDF(data []byte) ([]Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	numPages := reader.NumPage()
	docs := make([]Document, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: extracting page %d: %v", ErrDecode, i, err)
		}

		docs = append(docs, Document{
			Text: text,
			Meta: map[string]string{"page": strconv.Itoa(i)},
		})
	}
	return docs, nil
}
