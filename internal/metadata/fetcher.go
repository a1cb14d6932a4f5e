package metadata

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cayc/incubator/internal/adapter"
	"github.com/cayc/incubator/internal/logger"
	"github.com/cayc/incubator/internal/uri"
)

// Fetcher resolves the display image of a token from its metadata document
//
//go:generate mockgen -source=fetcher.go -destination=../mocks/metadata_fetcher.go -package=mocks -mock_names=Fetcher=MockMetadataFetcher
type Fetcher interface {
	// FetchImage returns the gateway URL of the token image.
	// Any failure yields an empty string, never an error.
	FetchImage(ctx context.Context, tokenURI string) string
}

type fetcher struct {
	httpClient adapter.HTTPClient
	json       adapter.JSON
	normalizer *uri.Normalizer
}

// NewFetcher creates a metadata fetcher
func NewFetcher(httpClient adapter.HTTPClient, json adapter.JSON, normalizer *uri.Normalizer) Fetcher {
	return &fetcher{
		httpClient: httpClient,
		json:       json,
		normalizer: normalizer,
	}
}

func (f *fetcher) FetchImage(ctx context.Context, tokenURI string) string {
	if strings.TrimSpace(tokenURI) == "" {
		return ""
	}

	metadata, err := f.fetchDocument(ctx, tokenURI)
	if err != nil {
		logger.WarnCtx(ctx, "failed to fetch token metadata", zap.String("uri", tokenURI), zap.Error(err))
		return ""
	}

	image, _ := metadata["image"].(string)
	image = strings.TrimSpace(image)
	if image == "" {
		logger.WarnCtx(ctx, "metadata has no image", zap.String("uri", tokenURI))
		return ""
	}

	// On-chain images are kept inline when the payload really is an image
	if uri.IsDataURI(image) {
		if !uri.IsImageDataURI(image) {
			logger.WarnCtx(ctx, "metadata image is not a valid image data URI", zap.String("uri", tokenURI))
			return ""
		}
		return image
	}

	return f.normalizer.Normalize(image)
}

// fetchDocument loads the metadata JSON from a data URI or a gateway URL
func (f *fetcher) fetchDocument(ctx context.Context, tokenURI string) (map[string]interface{}, error) {
	var raw []byte

	if uri.IsDataURI(tokenURI) {
		parsed, err := uri.ParseDataURI(tokenURI)
		if err != nil {
			return nil, err
		}
		raw = parsed.Data
	} else {
		url := f.normalizer.Normalize(tokenURI)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("unsupported URI scheme: %s", url)
		}

		body, err := f.httpClient.GetBytes(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch URL: %w", err)
		}
		raw = body
	}

	var metadata map[string]interface{}
	if err := f.json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if metadata == nil {
		return nil, fmt.Errorf("metadata document is empty")
	}

	return metadata, nil
}
