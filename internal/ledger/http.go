package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/noah-isme/lumina-dealer/internal/deal"
	"github.com/noah-isme/lumina-dealer/internal/resilience"
)

// HTTPSource reads vehicle expenses from the hosted ledger API.
type HTTPSource struct {
	BaseURL string
	APIKey  string
	Client  resilience.HTTPClient
}

type expensesResponse struct {
	Data []deal.LedgerEntry `json:"data"`
}

// FetchCosts calls GET {BaseURL}/vehicles/{id}/expenses.
func (s HTTPSource) FetchCosts(ctx context.Context, vehicleID uuid.UUID) ([]deal.LedgerEntry, error) {
	endpoint, err := url.JoinPath(s.BaseURL, "vehicles", vehicleID.String(), "expenses")
	if err != nil {
		return nil, fmt.Errorf("ledger: build url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.APIKey != "" {
		req.Header.Set("apikey", s.APIKey)
		req.Header.Set("Authorization", "Bearer "+s.APIKey)
	}

	resp, err := s.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("ledger: fetch vehicle %s: %w", vehicleID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("ledger: fetch vehicle %s: unexpected status %d", vehicleID, resp.StatusCode)
	}

	var payload expensesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ledger: decode vehicle %s: %w", vehicleID, err)
	}
	return payload.Data, nil
}
