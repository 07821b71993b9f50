package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// App Store receipt endpoints.
const (
	AppStoreProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	AppStoreSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
)

// statusSandboxReceipt is returned by production for sandbox receipts.
const statusSandboxReceipt = 21007

// HTTPAppStoreVerifier verifies receipts with Apple's verifyReceipt API.
type HTTPAppStoreVerifier struct {
	url        string
	sandboxURL string
	password   string
	http       HTTPDoer
	breaker    *gobreaker.CircuitBreaker
}

// NewAppStoreVerifier returns a verifier posting to url with the app's
// shared secret. An empty url selects production.
func NewAppStoreVerifier(url, sharedSecret string, doer HTTPDoer, logger *zap.Logger) *HTTPAppStoreVerifier {
	if url == "" {
		url = AppStoreProductionURL
	}
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPAppStoreVerifier{
		url:        url,
		sandboxURL: AppStoreSandboxURL,
		password:   sharedSecret,
		http:       doer,
		breaker:    newBreaker(DefaultBreakerConfig("appstore"), logger),
	}
}

type receiptRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type receiptResponse struct {
	Status            int `json:"status"`
	LatestReceiptInfo []struct {
		OriginalTransactionID string `json:"original_transaction_id"`
		ProductID             string `json:"product_id"`
		PurchaseDateMS        string `json:"purchase_date_ms"`
		ExpiresDateMS         string `json:"expires_date_ms"`
		CancellationDateMS    string `json:"cancellation_date_ms"`
	} `json:"latest_receipt_info"`
}

func (v *HTTPAppStoreVerifier) VerifyReceipt(ctx context.Context, receiptData string, excludeOld bool) (*Receipt, error) {
	body, err := json.Marshal(receiptRequest{ReceiptData: receiptData, Password: v.password, ExcludeOldTransactions: excludeOld})
	if err != nil {
		return nil, err
	}
	out, err := v.breaker.Execute(func() (any, error) {
		resp, err := v.post(ctx, v.url, body)
		if err == nil && resp.Status == statusSandboxReceipt {
			resp, err = v.post(ctx, v.sandboxURL, body)
		}
		return resp, err
	})
	if err != nil {
		return nil, wrap("appstore", err)
	}
	resp := out.(*receiptResponse)
	if resp.Status != 0 {
		return nil, fmt.Errorf("%w: receipt status %d", ErrInvalidToken, resp.Status)
	}

	receipt := &Receipt{}
	for _, info := range resp.LatestReceiptInfo {
		txn := ReceiptTransaction{
			OriginalTransactionID: info.OriginalTransactionID,
			ProductID:             info.ProductID,
			PurchasedAt:           millis(info.PurchaseDateMS),
			ExpiresAt:             millis(info.ExpiresDateMS),
		}
		if info.CancellationDateMS != "" {
			at := millis(info.CancellationDateMS)
			txn.CancelledAt = &at
		}
		receipt.Transactions = append(receipt.Transactions, txn)
	}
	return receipt, nil
}

func (v *HTTPAppStoreVerifier) post(ctx context.Context, url string, body []byte) (*receiptResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := v.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var out receiptResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &out, nil
}

func millis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// SetSandboxURL overrides the endpoint used for sandbox receipts.
func (v *HTTPAppStoreVerifier) SetSandboxURL(url string) {
	v.sandboxURL = url
}
