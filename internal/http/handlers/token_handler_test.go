package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenHandler_GetBalance_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TokenHandler{ledger: nil}
	r.GET("/tokens/balance", handler.GetBalance)

	req, _ := http.NewRequest("GET", "/tokens/balance", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenHandler_StartPurchase_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TokenHandler{ledger: nil}
	r.POST("/tokens/purchase", handler.StartPurchase)

	req, _ := http.NewRequest("POST", "/tokens/purchase", strings.NewReader(`{"tokens":100}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenHandler_SendTokens_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TokenHandler{ledger: nil}
	r.POST("/tokens/send", handler.SendTokens)

	req, _ := http.NewRequest("POST", "/tokens/send", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenHandler_ListTransactions_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TokenHandler{ledger: nil}
	r.GET("/tokens/transactions", handler.ListTransactions)

	req, _ := http.NewRequest("GET", "/tokens/transactions", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
