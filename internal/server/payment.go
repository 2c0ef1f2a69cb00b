package server

import (
	"net/http"
	"strings"

	paymentdomain "github.com/WordpressDesigne/mpesaprompt/internal/payment/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const HeaderIdempotencyKey = "Idempotency-Key"

type stkPushRequest struct {
	PhoneNumber      string          `json:"phone_number"`
	Amount           decimal.Decimal `json:"amount"`
	AccountReference string          `json:"account_reference"`
	Description      string          `json:"description"`
}

type stkPushResponse struct {
	Message           string `json:"message"`
	TransactionID     string `json:"transaction_id"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	MerchantRequestID string `json:"merchant_request_id,omitempty"`
	CustomerMessage   string `json:"customer_message,omitempty"`
	Status            string `json:"status"`
}

// InitiatePayment sends an STK push to the customer's phone.
func (s *Server) InitiatePayment(c *gin.Context) {
	id, err := businessID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req stkPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" {
		AbortWithError(c, newValidationError("phone_number", "required", "phone_number is required"))
		return
	}

	res, err := s.paymentSvc.Initiate(c.Request.Context(), paymentdomain.InitiateRequest{
		BusinessID:       id,
		PhoneNumber:      req.PhoneNumber,
		Amount:           req.Amount,
		AccountReference: req.AccountReference,
		Description:      req.Description,
		IdempotencyKey:   c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txn := res.Transaction
	resp := stkPushResponse{
		Message:         "STK push sent",
		TransactionID:   txn.ID.String(),
		CustomerMessage: res.CustomerMessage,
		Status:          string(txn.Status),
	}
	if res.Replayed {
		resp.Message = "STK push already requested"
	}
	if txn.CheckoutRequestID != nil {
		resp.CheckoutRequestID = *txn.CheckoutRequestID
	}
	if txn.MerchantRequestID != nil {
		resp.MerchantRequestID = *txn.MerchantRequestID
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListTransactions(c *gin.Context) {
	id, err := businessID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var query struct {
		Status string `form:"status"`
		Limit  int    `form:"limit"`
		Offset int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListRequest{
		BusinessID: id,
		Status:     paymentdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) GetTransaction(c *gin.Context) {
	id, err := businessID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	txnID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	txn, err := s.paymentSvc.Get(c.Request.Context(), id, txnID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txn})
}

func (s *Server) GetTransactionByCheckout(c *gin.Context) {
	id, err := businessID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	txn, err := s.paymentSvc.GetByCheckoutRequestID(c.Request.Context(), id, c.Param("checkout_request_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": txn})
}
