package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/revolutionai/storefront/internal/catalog"
)

type productResponse struct {
	catalog.Product
	AmountCents int64 `json:"amountCents"`
}

func toProductResponse(p catalog.Product) productResponse {
	// prices are validated when the catalog loads
	cents, _ := p.AmountCents()
	return productResponse{Product: p, AmountCents: cents}
}

func (s *Server) ListProducts(c *gin.Context) {
	category := strings.TrimSpace(c.Query("category"))

	products := s.catalog.List()
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, toProductResponse(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"products":   out,
		"categories": s.catalog.Categories(),
	})
}

func (s *Server) GetProduct(c *gin.Context) {
	product, ok := s.catalog.Get(strings.TrimSpace(c.Param("id")))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}
