package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	dErrors "zapgate/pkg/domain-errors"
	id "zapgate/pkg/domain"
)

// LNDClient talks to an LND node over its REST API. The macaroon grants
// invoice permissions only; the gateway never needs signing or channel
// access.
type LNDClient struct {
	baseURL  string
	macaroon string
	client   *http.Client
}

// LNDConfig configures the LND REST connection.
type LNDConfig struct {
	BaseURL string
	// MacaroonHex is the hex-encoded invoice macaroon.
	MacaroonHex string
	// InsecureSkipVerify disables TLS verification for self-signed LND
	// certs on private networks.
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// NewLNDClient creates an LND-backed invoice gateway.
func NewLNDClient(cfg LNDConfig) *LNDClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &LNDClient{
		baseURL:  cfg.BaseURL,
		macaroon: cfg.MacaroonHex,
		client:   &http.Client{Timeout: timeout, Transport: transport},
	}
}

type lndCreateRequest struct {
	ValueMsat       string `json:"value_msat"`
	DescriptionHash string `json:"description_hash,omitempty"`
	Memo            string `json:"memo,omitempty"`
	Expiry          string `json:"expiry"`
}

type lndCreateResponse struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
}

type lndLookupResponse struct {
	Settled   bool   `json:"settled"`
	State     string `json:"state"`
	RPreimage string `json:"r_preimage"`
}

// CreateInvoice adds an invoice on the node. The returned settlement
// reference is the hex payment hash.
func (c *LNDClient) CreateInvoice(ctx context.Context, req CreateRequest) (Invoice, error) {
	payload := lndCreateRequest{
		ValueMsat: strconv.FormatInt(req.AmountMsat, 10),
		Memo:      req.Memo,
		Expiry:    strconv.FormatInt(int64(req.Expiry/time.Second), 10),
	}
	if len(req.DescriptionHash) > 0 {
		payload.DescriptionHash = base64.StdEncoding.EncodeToString(req.DescriptionHash)
	}

	var resp lndCreateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/invoices", payload, &resp); err != nil {
		return Invoice{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "lnd invoice creation failed")
	}

	hash, err := base64.StdEncoding.DecodeString(resp.RHash)
	if err != nil {
		return Invoice{}, dErrors.Wrap(err, dErrors.CodeInternal, "lnd returned malformed payment hash")
	}

	return Invoice{
		PaymentRequest: resp.PaymentRequest,
		SettlementRef:  id.SettlementRef(hex.EncodeToString(hash)),
		ExpiresAt:      time.Now().Add(req.Expiry),
	}, nil
}

// LookupSettlement queries one invoice's state by payment hash.
func (c *LNDClient) LookupSettlement(ctx context.Context, ref id.SettlementRef) (Settlement, error) {
	var resp lndLookupResponse
	if err := c.do(ctx, http.MethodGet, "/v1/invoice/"+ref.String(), nil, &resp); err != nil {
		return Settlement{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "lnd invoice lookup failed")
	}

	settlement := Settlement{
		Settled: resp.Settled || resp.State == "SETTLED",
		Expired: resp.State == "CANCELED",
	}
	if settlement.Settled && resp.RPreimage != "" {
		if preimage, err := base64.StdEncoding.DecodeString(resp.RPreimage); err == nil {
			settlement.Preimage = hex.EncodeToString(preimage)
		}
	}
	return settlement, nil
}

func (c *LNDClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.macaroon != "" {
		req.Header.Set("Grpc-Metadata-macaroon", c.macaroon)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("lnd returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
