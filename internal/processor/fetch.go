package processor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rezonia/cufe-expenses/internal/model"
)

// DefaultMaxPDFBytes bounds downloaded and decoded documents
const DefaultMaxPDFBytes = 20 << 20

// Fetcher downloads a document by URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads documents over HTTP
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFetcher creates a fetcher with the given request timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: DefaultMaxPDFBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewProcessingError(model.KindNetwork, "invalid document URL", err)
	}
	req.Header.Set("Accept", "application/pdf")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewProcessingError(model.KindNetwork, "document download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewProcessingError(model.KindNetwork,
			fmt.Sprintf("document server returned status %d", resp.StatusCode), nil)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxPDFBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, model.NewProcessingError(model.KindNetwork, "failed to read document", err)
	}
	if int64(len(body)) > limit {
		return nil, model.NewExtractionError("download", fmt.Sprintf("document exceeds %d bytes", limit), nil)
	}
	return body, nil
}
