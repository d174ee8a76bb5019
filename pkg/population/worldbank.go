package population

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/mortality-signals/signalsx/pkg/retry"
	"github.com/mortality-signals/signalsx/pkg/utils"
)

// Indicator is the World Bank total-population indicator.
const Indicator = "SP.POP.TOTL"

// Key identifies one population figure: ISO country code + year.
type Key struct {
	Code string
	Year uint16
}

// Figures maps (code, year) to total population.
type Figures map[Key]uint64

// Provider supplies population figures for the enrichment stage.
type Provider interface {
	Populations(ctx context.Context, fromYear, toYear uint16) (Figures, error)
}

// Client fetches population figures from the World Bank REST API.
type Client struct {
	Logger  *zap.Logger
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a World Bank API client. Base URL comes from
// WORLDBANK_API_BASE so tests and air-gapped setups can point elsewhere.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		Logger:  logger,
		BaseURL: utils.Env("WORLDBANK_API_BASE", "https://api.worldbank.org/v2"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// wbRecord mirrors the World Bank JSON response shape. The response is a
// two-element array: [paging metadata, records].
type wbRecord struct {
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

// Populations fetches total population for all countries over the year
// range, paging through the API. Records with null values are skipped.
func (c *Client) Populations(ctx context.Context, fromYear, toYear uint16) (Figures, error) {
	figures := make(Figures)

	page := 1
	for {
		records, pages, err := c.fetchPage(ctx, fromYear, toYear, page)
		if err != nil {
			return nil, err
		}

		for _, rec := range records {
			if rec.Value == nil || *rec.Value <= 0 {
				continue
			}
			var year uint16
			if _, err := fmt.Sscanf(rec.Date, "%d", &year); err != nil {
				continue
			}
			figures[Key{Code: rec.Country.ID, Year: year}] = uint64(*rec.Value)
		}

		if page >= pages {
			break
		}
		page++
	}

	c.Logger.Info("Fetched World Bank population figures",
		zap.Int("figures", len(figures)),
		zap.Uint16("from_year", fromYear),
		zap.Uint16("to_year", toYear))

	return figures, nil
}

func (c *Client) fetchPage(ctx context.Context, fromYear, toYear uint16, page int) ([]wbRecord, int, error) {
	endpoint := fmt.Sprintf("%s/country/all/indicator/%s", c.BaseURL, Indicator)

	params := url.Values{}
	params.Set("format", "json")
	params.Set("per_page", "20000")
	params.Set("date", fmt.Sprintf("%d:%d", fromYear, toYear))
	params.Set("page", fmt.Sprintf("%d", page))

	var (
		records []wbRecord
		pages   int
	)

	err := retry.WithBackoff(ctx, retry.DefaultConfig(), c.Logger, "worldbank_fetch", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("worldbank API returned %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		// Response shape: [ {page, pages, ...}, [records...] ]
		var envelope []json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return fmt.Errorf("unexpected worldbank response: %w", err)
		}
		if len(envelope) < 2 {
			return fmt.Errorf("unexpected worldbank response: %d elements", len(envelope))
		}

		var meta struct {
			Pages int `json:"pages"`
		}
		if err := json.Unmarshal(envelope[0], &meta); err != nil {
			return fmt.Errorf("parse worldbank paging: %w", err)
		}

		records = nil
		if err := json.Unmarshal(envelope[1], &records); err != nil {
			return fmt.Errorf("parse worldbank records: %w", err)
		}

		pages = meta.Pages
		if pages < 1 {
			pages = 1
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return records, pages, nil
}
