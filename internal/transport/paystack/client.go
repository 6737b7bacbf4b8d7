// Package paystack HTTP клиент платежного шлюза: проверка транзакций и возвраты.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fsdevblog/peerinvest/internal/domain"
	"github.com/fsdevblog/peerinvest/internal/metrics"
)

const (
	RouteVerify = "/transaction/verify/%s"
	RouteRefund = "/refund"

	DefaultBaseURL = "https://api.paystack.co"
	defaultTimeout = 10 * time.Second

	// ограничение на чтение тела ответа.
	maxBodySize = 1 << 20
)

// Client реализация service.PaymentGateway поверх HTTP API шлюза.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// New создает клиент. Пустой baseURL означает DefaultBaseURL, timeout <= 0 - таймаут по умолчанию.
func New(baseURL, secret string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify получает статус и оплаченную сумму транзакции txRef. Сумма в минимальных единицах валюты.
// Ответ со статусом отличным от 2xx возвращается как *domain.GatewayError.
func (c *Client) Verify(ctx context.Context, txRef string) (*domain.PaymentVerification, error) {
	var resp envelope[verifyData]
	path := fmt.Sprintf(RouteVerify, url.PathEscape(txRef))
	if err := c.do(ctx, "verify", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &domain.PaymentVerification{
		Status:      resp.Data.Status,
		AmountMinor: resp.Data.Amount,
	}, nil
}

// Refund запрашивает полный возврат по транзакции txRef с пометкой note.
func (c *Client) Refund(ctx context.Context, txRef, note string) (*domain.RefundResult, error) {
	var resp envelope[refundData]
	body := refundRequest{Transaction: txRef, CustomerNote: note}
	if err := c.do(ctx, "refund", http.MethodPost, RouteRefund, body, &resp); err != nil {
		return nil, err
	}
	return &domain.RefundResult{Status: resp.Data.Status}, nil
}

//nolint:nonamedreturns
func (c *Client) do(
	ctx context.Context,
	operation, method, path string,
	reqBody any,
	result any,
) (err error) {
	started := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	}()

	var body io.Reader
	if reqBody != nil {
		data, marshalErr := json.Marshal(reqBody)
		if marshalErr != nil {
			return fmt.Errorf("%s: marshal request: %w", operation, marshalErr)
		}
		body = bytes.NewReader(data)
	}

	// Создаем запрос.
	req, reqErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if reqErr != nil {
		return fmt.Errorf("%s: create request: %w", operation, reqErr)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Выполняем запрос.
	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("%s: %w: %s", operation, domain.ErrUpstreamFailure, doErr.Error())
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if readErr != nil {
		return fmt.Errorf("%s: %w: read response: %s", operation, domain.ErrUpstreamFailure, readErr.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.NewGatewayError(resp.StatusCode, errorMessage(resp.StatusCode, respBody))
	}

	if jsonErr := json.Unmarshal(respBody, result); jsonErr != nil {
		return fmt.Errorf("%s: %w: parse response: %s", operation, domain.ErrUpstreamFailure, jsonErr.Error())
	}
	return nil
}

// errorMessage достает message из тела ответа с ошибкой. Если тело не JSON, используется текст статуса.
func errorMessage(statusCode int, body []byte) string {
	var resp envelope[json.RawMessage]
	if err := json.Unmarshal(body, &resp); err == nil && resp.Message != "" {
		return resp.Message
	}
	return http.StatusText(statusCode)
}
