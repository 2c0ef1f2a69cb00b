package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const recentCommissionsLimit = 20

// GetWallet returns the balance together with the latest commission postings.
func (s *Server) GetWallet(c *gin.Context) {
	id, err := businessID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	wallet, err := s.walletSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	commissions, err := s.walletSvc.ListCommissions(ctx, id, recentCommissionsLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"balance":            wallet.Balance.StringFixed(2),
		"total_earnings":     wallet.TotalEarnings.StringFixed(2),
		"total_commissions":  wallet.TotalCommissions.StringFixed(2),
		"currency":           wallet.Currency,
		"updated_at":         wallet.UpdatedAt,
		"recent_commissions": commissions,
	}})
}
