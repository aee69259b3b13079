// Package azure pulls reserved instance utilization from the Azure
// Consumption API.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/riwatch/backend/internal/config"
	"github.com/riwatch/backend/internal/model"
	"github.com/riwatch/backend/internal/provider"
)

// Source implements provider.UsageSource against the Azure
// reservation summaries endpoint.
type Source struct {
	cfg        config.AzureConfig
	httpClient *http.Client
	logger     *slog.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewSource creates a new Azure usage source.
func NewSource(cfg config.AzureConfig, logger *slog.Logger) (*Source, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("azure: tenant_id, client_id, client_secret, and subscription_id are required")
	}

	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

func (s *Source) Name() string { return "azure" }
func (s *Source) Close() error { return nil }

// Health checks Azure connectivity by requesting a token.
func (s *Source) Health(ctx context.Context) provider.HealthStatus {
	_, err := s.getToken(ctx)
	status := provider.HealthStatus{
		LastChecked: time.Now(),
		Details:     map[string]any{"subscription": s.cfg.SubscriptionID},
	}
	if err != nil {
		status.Healthy = false
		status.Message = fmt.Sprintf("Azure health check failed: %v", err)
	} else {
		status.Healthy = true
		status.Message = "Azure source healthy"
	}
	return status
}

// GetUsage retrieves daily reservation utilization summaries for the
// given date range. Pages through the API until nextLink is empty.
func (s *Source) GetUsage(ctx context.Context, req provider.UsageRequest) ([]model.UsageObservation, error) {
	s.logger.Info("fetching Azure reservation summaries",
		"start", req.Range.Start.Format("2006-01-02"),
		"end", req.Range.End.Format("2006-01-02"),
	)

	token, err := s.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("azure: failed to get token: %w", err)
	}

	filter := fmt.Sprintf("properties/usageDate ge %s AND properties/usageDate le %s",
		req.Range.Start.Format("2006-01-02"), req.Range.End.Format("2006-01-02"))

	apiURL := fmt.Sprintf(
		"https://management.azure.com/subscriptions/%s/providers/Microsoft.Consumption/reservationSummaries?grain=daily&$filter=%s&api-version=2023-05-01",
		s.cfg.SubscriptionID, url.QueryEscape(filter),
	)

	var observations []model.UsageObservation
	for apiURL != "" {
		page, next, err := s.fetchPage(ctx, apiURL, token)
		if err != nil {
			return nil, err
		}
		observations = append(observations, page...)
		apiURL = next
	}

	s.logger.Info("fetched Azure reservation summaries", "count", len(observations))
	return observations, nil
}

func (s *Source) fetchPage(ctx context.Context, apiURL, token string) ([]model.UsageObservation, string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("azure: API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("azure: API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result summariesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, "", fmt.Errorf("azure: failed to decode response: %w", err)
	}

	var observations []model.UsageObservation
	for _, item := range result.Value {
		reportDate, err := time.Parse(time.RFC3339, item.Properties.UsageDate)
		if err != nil {
			s.logger.Warn("skipping summary with unparseable usage date",
				"usage_date", item.Properties.UsageDate, "error", err)
			continue
		}

		observations = append(observations, model.UsageObservation{
			SubscriptionID: s.cfg.SubscriptionID,
			ResourceID:     reservationResourceID(item.Properties.ReservationOrderID, item.Properties.ReservationID),
			ReportDate:     reportDate.UTC(),
			UsageQuantity:  item.Properties.AvgUtilizationPercentage,
			SKUName:        item.Properties.SKUName,
		})
	}

	return observations, result.NextLink, nil
}

// getToken acquires an OAuth2 token using client credentials flow.
func (s *Source) getToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.token != "" && time.Now().Before(s.tokenExpiry) {
		return s.token, nil
	}

	tokenURL := fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", s.cfg.TenantID)

	data := url.Values{}
	data.Set("client_id", s.cfg.ClientID)
	data.Set("client_secret", s.cfg.ClientSecret)
	data.Set("scope", "https://management.azure.com/.default")
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, "POST", tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	s.token = tokenResp.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)

	return s.token, nil
}

func reservationResourceID(orderID, reservationID string) string {
	if orderID == "" {
		return reservationID
	}
	if reservationID == "" {
		return orderID
	}
	return orderID + "/" + reservationID
}

// --- Response types for the Consumption API ---

type summariesResponse struct {
	Value []struct {
		Properties struct {
			ReservationOrderID       string  `json:"reservationOrderId"`
			ReservationID            string  `json:"reservationId"`
			SKUName                  string  `json:"skuName"`
			UsageDate                string  `json:"usageDate"`
			UsedHours                float64 `json:"usedHours"`
			ReservedHours            float64 `json:"reservedHours"`
			AvgUtilizationPercentage float64 `json:"avgUtilizationPercentage"`
		} `json:"properties"`
	} `json:"value"`
	NextLink string `json:"nextLink"`
}
