package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Transfer is one observed inbound or outbound transfer for an account,
// as reported by the indexer.
type Transfer struct {
	// Hash is the transaction hash.
	Hash string `json:"hash"`

	// From and To are the source and destination addresses.
	From string `json:"from"`
	To   string `json:"to"`

	// ValueBaseUnits is the transferred value in nano units.
	ValueBaseUnits int64 `json:"value"`

	// Memo is the transfer comment, empty when none was attached.
	Memo string `json:"comment,omitempty"`

	// Timestamp is the chain timestamp in epoch seconds.
	Timestamp int64 `json:"utime"`
}

// IndexerClient queries a tonapi-style HTTP indexer for the recent
// transfer history of an address. The indexer is an external service that
// may be unavailable or rate-limited at any time; callers treat errors as
// "no data this cycle" rather than payment failures.
type IndexerClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewIndexerClient creates a client for the indexer at baseURL. apiKey
// may be empty for unauthenticated tiers.
func NewIndexerClient(baseURL, apiKey string, timeout time.Duration) *IndexerClient {
	return &IndexerClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListRecentTransfers returns up to limit of the most recent transfers
// touching address, newest first per the indexer's ordering.
func (c *IndexerClient) ListRecentTransfers(ctx context.Context, address string, limit int) ([]Transfer, error) {
	u := fmt.Sprintf("%s/v2/accounts/%s/transfers?limit=%s",
		c.baseURL, url.PathEscape(address), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build indexer request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("indexer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("indexer returned status %d", resp.StatusCode)
	}

	var body struct {
		Transfers []Transfer `json:"transfers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode indexer response: %w", err)
	}
	return body.Transfers, nil
}
