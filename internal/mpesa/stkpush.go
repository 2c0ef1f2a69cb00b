package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

type TransactionType string

const (
	TransactionTypePayBill  TransactionType = "CustomerPayBillOnline"
	TransactionTypeBuyGoods TransactionType = "CustomerBuyGoodsOnline"
)

type STKPushRequest struct {
	Shortcode        string
	Passkey          string
	TransactionType  TransactionType
	Amount           int64
	PhoneNumber      string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

func (r STKPushRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Shortcode) == "",
		strings.TrimSpace(r.Passkey) == "",
		strings.TrimSpace(r.CallbackURL) == "",
		strings.TrimSpace(r.PhoneNumber) == "",
		r.Amount <= 0:
		return ErrInvalidRequest
	}
	switch r.TransactionType {
	case TransactionTypePayBill, TransactionTypeBuyGoods:
	default:
		return ErrInvalidRequest
	}
	return nil
}

type stkPushPayload struct {
	BusinessShortCode string          `json:"BusinessShortCode"`
	Password          string          `json:"Password"`
	Timestamp         string          `json:"Timestamp"`
	TransactionType   TransactionType `json:"TransactionType"`
	Amount            int64           `json:"Amount"`
	PartyA            string          `json:"PartyA"`
	PartyB            string          `json:"PartyB"`
	PhoneNumber       string          `json:"PhoneNumber"`
	CallBackURL       string          `json:"CallBackURL"`
	AccountReference  string          `json:"AccountReference"`
	TransactionDesc   string          `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkPushResponseBody struct {
	MerchantRequestID   string         `json:"MerchantRequestID"`
	CheckoutRequestID   string         `json:"CheckoutRequestID"`
	ResponseCode        numberOrString `json:"ResponseCode"`
	ResponseDescription string         `json:"ResponseDescription"`
	CustomerMessage     string         `json:"CustomerMessage"`
}

// STKPush asks the gateway to prompt the customer's handset. A nil error means
// the gateway accepted the request and returned a CheckoutRequestID.
func (c *Client) STKPush(ctx context.Context, creds Credentials, req STKPushRequest) (*STKPushResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	token, err := c.tokens.Token(ctx, creds)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(c.clock.Now().In(c.cfg.Location))
	payload := stkPushPayload{
		BusinessShortCode: req.Shortcode,
		Password:          Password(req.Shortcode, req.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   req.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            req.Shortcode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  Truncate(req.AccountReference, MaxAccountReferenceLength),
		TransactionDesc:   Truncate(req.TransactionDesc, MaxTransactionDescLength),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL(creds.Environment)+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	c.metrics.ObserveGatewayLatency("stk_push", time.Since(start))
	if err != nil {
		message := "stk push request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			message = "stk push request timed out"
		}
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, Message: message, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		eb := parseErrorBody(raw)
		gerr := &GatewayError{
			Kind:       ErrGatewayRejected,
			StatusCode: resp.StatusCode,
			Code:       eb.ErrorCode.String(),
			Message:    eb.ErrorMessage,
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			c.tokens.Invalidate(creds)
			gerr.Kind = ErrTokenUnavailable
		case resp.StatusCode >= http.StatusInternalServerError:
			gerr.Kind = ErrGatewayUnavailable
		}
		if gerr.Message == "" {
			gerr.Message = "gateway returned " + strconv.Itoa(resp.StatusCode)
		}
		c.log.Warn("stk push rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("code", gerr.Code),
			zap.String("message", gerr.Message),
		)
		return nil, gerr
	}

	var parsed stkPushResponseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, StatusCode: resp.StatusCode, Message: "malformed stk push response"}
	}
	if parsed.ResponseCode.String() != "0" {
		message := parsed.ResponseDescription
		if message == "" {
			message = "gateway returned response code " + parsed.ResponseCode.String()
		}
		return nil, &GatewayError{
			Kind:       ErrGatewayRejected,
			StatusCode: resp.StatusCode,
			Code:       parsed.ResponseCode.String(),
			Message:    message,
		}
	}
	if strings.TrimSpace(parsed.CheckoutRequestID) == "" {
		return nil, &GatewayError{Kind: ErrGatewayUnavailable, StatusCode: resp.StatusCode, Message: "missing CheckoutRequestID"}
	}

	return &STKPushResponse{
		MerchantRequestID:   parsed.MerchantRequestID,
		CheckoutRequestID:   parsed.CheckoutRequestID,
		ResponseCode:        parsed.ResponseCode.String(),
		ResponseDescription: parsed.ResponseDescription,
		CustomerMessage:     parsed.CustomerMessage,
	}, nil
}
