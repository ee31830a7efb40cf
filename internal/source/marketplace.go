package source

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/alanyoungcy/rwadiscovery/internal/domain"
)

// SourceMarketplace names the RWA/NFT marketplace adapter.
const SourceMarketplace = "marketplace"

type marketplaceResponse struct {
	Listings []marketplaceListing `json:"listings"`
}

type marketplaceListing struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Symbol       string   `json:"symbol"`
	Category     string   `json:"category"`
	CurrentBid   *float64 `json:"currentBid"`
	EstimateLow  *float64 `json:"estimateLow"`
	EstimateHigh *float64 `json:"estimateHigh"`
	Chain        string   `json:"chain"`
}

// MarketplaceSource lists tokenized collectibles. Listings have no contract
// address of their own; the aggregator derives one from the listing id.
type MarketplaceSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewMarketplaceSource creates the adapter.
func NewMarketplaceSource(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *MarketplaceSource {
	return &MarketplaceSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(timeout),
		logger:     logger.With(slog.String("component", "marketplace_source")),
	}
}

func (m *MarketplaceSource) Name() string { return SourceMarketplace }

// Fetch returns listings ranked by current bid, falling back to the estimate
// midpoint.
func (m *MarketplaceSource) Fetch(ctx context.Context) ([]domain.RawAssetFacts, error) {
	var headers map[string]string
	if m.apiKey != "" {
		headers = map[string]string{"X-API-Key": m.apiKey}
	}

	var resp marketplaceResponse
	if err := getJSON(ctx, m.httpClient, m.baseURL+"/listings", headers, &resp); err != nil {
		return nil, &domain.SourceError{Source: SourceMarketplace, Err: err}
	}

	out := make([]domain.RawAssetFacts, 0, len(resp.Listings))
	for _, l := range resp.Listings {
		if strings.TrimSpace(l.ID) == "" || strings.TrimSpace(l.Title) == "" {
			m.logger.Debug("listing skipped: missing id or title", slog.String("id", l.ID))
			continue
		}
		out = append(out, l.toFacts())
	}
	return out, nil
}

func (l marketplaceListing) toFacts() domain.RawAssetFacts {
	f := domain.RawAssetFacts{
		Source:     SourceMarketplace,
		NaturalKey: l.ID,
		ChainID:    domain.ChainIDFromName(l.Chain),
		Name:       strings.TrimSpace(l.Title),
		Symbol:     strings.TrimSpace(l.Symbol),
		Category:   l.Category,
		CurrentBid: l.CurrentBid,
	}
	if f.Symbol == "" {
		f.Symbol = tickerFromTitle(f.Name)
	}
	if l.EstimateLow != nil && l.EstimateHigh != nil {
		f.EstimateRange = &domain.PriceRange{Low: *l.EstimateLow, High: *l.EstimateHigh}
	}
	switch {
	case f.CurrentBid != nil:
		f.RankKey = *f.CurrentBid
	case f.EstimateRange != nil:
		f.RankKey = (f.EstimateRange.Low + f.EstimateRange.High) / 2
	}
	return f
}

// tickerFromTitle builds an upper-case ticker from word initials, at most
// five letters.
func tickerFromTitle(title string) string {
	var b strings.Builder
	for _, w := range strings.Fields(title) {
		for _, r := range w {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToUpper(r))
				break
			}
		}
		if b.Len() >= 5 {
			break
		}
	}
	if b.Len() == 0 {
		return "RWA"
	}
	return b.String()
}
