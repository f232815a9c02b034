package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
	"github.com/aezzeldin/storefront-api/pkg/retry"
)

// AdminClient talks to the admin service, which owns ambassador dashboards
// and coupon redemption records.
type AdminClient struct {
	baseURL     string
	httpClient  *http.Client
	logger      logger.Logger
	retryConfig *retry.RetryConfig
}

// RedemptionRequest notifies the admin service of a coupon redemption
type RedemptionRequest struct {
	OrderID        string          `json:"order_id"`
	Code           string          `json:"code"`
	AmbassadorID   string          `json:"ambassador_id,omitempty"`
	CustomerEmail  string          `json:"customer_email"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	OrderTotal     decimal.Decimal `json:"order_total"`
	RedeemedAt     time.Time       `json:"redeemed_at"`
}

// StatsUpdateRequest pushes an ambassador's per-order deltas
type StatsUpdateRequest struct {
	AmbassadorID string          `json:"ambassador_id"`
	OrderID      string          `json:"order_id"`
	SaleAmount   decimal.Decimal `json:"sale_amount"`
	Commission   decimal.Decimal `json:"commission"`
}

// AdminResponse is the admin service's generic acknowledgement
type AdminResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// NewAdminClient creates a new AdminClient instance
func NewAdminClient(baseURL string, timeout time.Duration, logger logger.Logger) *AdminClient {
	httpClient := &http.Client{
		Timeout: timeout,
	}

	retryConfig := &retry.RetryConfig{
		MaxAttempts: 3,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
			JitterFactor:    0.2,
		},
		Logger: logger,
		RetryableErrors: []error{
			errors.ErrTimeout,
			errors.ErrTemporaryFailure,
			errors.ErrServiceUnavailable,
		},
	}

	return &AdminClient{
		baseURL:     baseURL,
		httpClient:  httpClient,
		logger:      logger,
		retryConfig: retryConfig,
	}
}

// NotifyRedemption reports a coupon redemption to the admin service
func (c *AdminClient) NotifyRedemption(ctx context.Context, request *RedemptionRequest) error {
	url := fmt.Sprintf("%s/api/v1/redemptions", c.baseURL)

	err := retry.Retry(ctx, func() error {
		return c.postJSON(ctx, url, request)
	}, c.retryConfig)

	if err != nil {
		c.logger.Error("Failed to notify redemption after retries",
			"error", err,
			"orderID", request.OrderID,
			"code", request.Code)
		return err
	}

	return nil
}

// UpdateAmbassadorStats pushes per-order stat deltas to the admin service
func (c *AdminClient) UpdateAmbassadorStats(ctx context.Context, request *StatsUpdateRequest) error {
	url := fmt.Sprintf("%s/api/v1/ambassadors/%s/stats", c.baseURL, request.AmbassadorID)

	err := retry.Retry(ctx, func() error {
		return c.postJSON(ctx, url, request)
	}, c.retryConfig)

	if err != nil {
		c.logger.Error("Failed to update ambassador stats after retries",
			"error", err,
			"ambassadorID", request.AmbassadorID,
			"orderID", request.OrderID)
		return err
	}

	return nil
}

// postJSON does one POST attempt and classifies the failure so the retry
// layer knows what is worth retrying.
func (c *AdminClient) postJSON(ctx context.Context, url string, payload interface{}) error {
	reqBody, err := json.Marshal(payload)

	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to marshal request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))

	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)

	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return errors.NewTimeoutError("admin service request timed out")
		}
		return errors.NewTemporaryError(fmt.Sprintf("failed to send request: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)

	if err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to read response body: %v", err))
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
			return errors.NewTimeoutError("admin service request timed out")
		}

		if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusInternalServerError {
			return errors.NewTemporaryError(fmt.Sprintf("admin service error: %d", resp.StatusCode))
		}

		return errors.NewAppError(
			errors.ErrInternal,
			fmt.Sprintf("admin service returned error: %d", resp.StatusCode),
			resp.StatusCode,
			false,
		)
	}

	var response AdminResponse

	if err := json.Unmarshal(body, &response); err != nil {
		return errors.NewInternalError(fmt.Sprintf("failed to parse response: %v", err))
	}

	if response.Error != "" {
		if response.Code == "TIMEOUT" {
			return errors.NewTimeoutError(response.Error)
		}
		return errors.NewTemporaryError(response.Error)
	}

	return nil
}
