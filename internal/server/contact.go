package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	contactdomain "github.com/revolutionai/storefront/internal/contact/domain"
	"github.com/revolutionai/storefront/pkg/db/pagination"
)

type contactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	Service   string `json:"service"`
	Budget    string `json:"budget"`
	Timeline  string `json:"timeline"`
	Message   string `json:"message"`
}

func (s *Server) SubmitContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	booking, err := s.contact.Submit(c.Request.Context(), contactdomain.SubmitRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Company:   req.Company,
		Service:   req.Service,
		Budget:    req.Budget,
		Timeline:  req.Timeline,
		Message:   req.Message,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Thank you for your consultation request! We'll get back to you within 24 hours.",
		"reference": booking.Reference,
	})
}

func (s *Server) ListBookings(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.contact.List(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
