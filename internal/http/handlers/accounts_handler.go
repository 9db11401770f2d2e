// Account HTTP handlers.
//
// This file exposes REST endpoints for the account directory:
//   - GET    /accounts   (list, weak ETag support)
//   - POST   /accounts   (register, admin secret required)
//   - DELETE /accounts   (unregister, admin secret required)
package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-tweet-feed/internal/auth"
	"github.com/tbourn/go-tweet-feed/internal/domain"
)

// AccountRequest is the JSON payload for adding or removing an account.
type AccountRequest struct {
	// Username is the handle, with or without a leading "@".
	Username string `json:"username" example:"alice"`
	// Password is the shared admin secret.
	Password string `json:"password" example:"s3cret"`
}

// ListAccountsResponse wraps the registered accounts.
type ListAccountsResponse struct {
	Accounts []domain.Account `json:"accounts"`
}

// AddAccountResponse is returned after a successful registration.
type AddAccountResponse struct {
	Message  string         `json:"message" example:"Account added successfully"`
	Username string         `json:"username" example:"alice"`
	Account  domain.Account `json:"account"`
}

// RemoveAccountResponse is returned after a successful removal.
type RemoveAccountResponse struct {
	Message  string `json:"message" example:"Account removed successfully"`
	Username string `json:"username" example:"alice"`
}

// ListAccounts godoc
// @ID          listAccounts
// @Summary     List registered accounts
// @Description Returns every registered account in insertion order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Accounts
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"accounts:2:abc123\")
//
// @Success     200  {object} handlers.ListAccountsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     503  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /accounts [get]
func (h *Handlers) ListAccounts(c *gin.Context) {
	accts, err := h.accounts.List(c.Request.Context())
	if err != nil {
		failErr(c, err, "Failed to get accounts")
		return
	}

	etag := accountsETag(accts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	ok(c, http.StatusOK, ListAccountsResponse{Accounts: accts})
}

// AddAccount godoc
// @ID          addAccount
// @Summary     Register an account
// @Description Adds a handle to the directory. Requires the admin password.
// @Tags        Accounts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AccountRequest  true  "Username and admin password"
//
// @Success     201  {object} handlers.AddAccountResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid admin password"
// @Failure     409  {object} handlers.ErrorResponse "Already registered"
// @Failure     500  {object} handlers.ErrorResponse "Admin password not configured"
// @Failure     503  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /accounts [post]
func (h *Handlers) AddAccount(c *gin.Context) {
	req, done := h.bindAdmin(c)
	if done {
		return
	}

	acct, err := h.accounts.Add(c.Request.Context(), req.Username)
	if err != nil {
		failErr(c, err, "Failed to add account")
		return
	}
	ok(c, http.StatusCreated, AddAccountResponse{
		Message:  "Account added successfully",
		Username: acct.Username,
		Account:  *acct,
	})
}

// RemoveAccount godoc
// @ID          removeAccount
// @Summary     Unregister an account
// @Description Removes a handle from the directory and drops its cached tweets. Requires the admin password.
// @Tags        Accounts
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AccountRequest  true  "Username and admin password"
//
// @Success     200  {object} handlers.RemoveAccountResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Invalid admin password"
// @Failure     404  {object} handlers.ErrorResponse "Not registered"
// @Failure     500  {object} handlers.ErrorResponse "Admin password not configured"
// @Failure     503  {object} handlers.ErrorResponse "Storage unavailable"
// @Router      /accounts [delete]
func (h *Handlers) RemoveAccount(c *gin.Context) {
	req, done := h.bindAdmin(c)
	if done {
		return
	}

	acct, err := h.accounts.Remove(c.Request.Context(), req.Username)
	if err != nil {
		failErr(c, err, "Failed to remove account")
		return
	}
	ok(c, http.StatusOK, RemoveAccountResponse{
		Message:  "Account removed successfully",
		Username: acct.Username,
	})
}

// bindAdmin decodes an AccountRequest and checks the admin password. When it
// returns done=true a response has already been written.
func (h *Handlers) bindAdmin(c *gin.Context) (req AccountRequest, done bool) {
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return req, true
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Username and password are required")
		return req, true
	}

	switch err := h.admin.Check(req.Password); {
	case err == nil:
		return req, false
	case errors.Is(err, auth.ErrNotConfigured):
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "Admin password not configured")
	default:
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid admin password")
	}
	return req, true
}

// accountsETag derives a weak validator from the account ids and usernames.
func accountsETag(accts []domain.Account) string {
	h := sha256.New()
	for _, a := range accts {
		h.Write([]byte(a.ID))
		h.Write([]byte{0})
		h.Write([]byte(a.Username))
		h.Write([]byte{0})
	}
	return fmt.Sprintf(`W/"accounts:%d:%s"`, len(accts), hex.EncodeToString(h.Sum(nil))[:16])
}
