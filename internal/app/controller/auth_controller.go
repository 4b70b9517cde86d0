package controller

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	authService *service.AuthService
	cartService *service.CartService
}

func NewAuthController(authService *service.AuthService, cartService *service.CartService) *AuthController {
	return &AuthController{
		authService: authService,
		cartService: cartService,
	}
}

type requestOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
	// Set when the caller shopped before signing in; the guest cart is
	// merged into the account cart as part of the login.
	GuestCartToken string `json:"guest_cart_token"`
}

type adminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RequestOTP sends a login code to the phone number.
// POST /api/v1/auth/otp/request
func (ctrl *AuthController) RequestOTP(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req requestOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "phone is required")
		return
	}

	if err := ctrl.authService.RequestOTP(c.Request.Context(), req.Phone); err != nil {
		if stderrors.Is(err, service.ErrPhoneInvalid) {
			errors.BadRequest(c, errors.AuthPhoneInvalid, "Please enter a valid 10 digit mobile number")
			return
		}
		log.Error("Failed to send OTP", err, map[string]interface{}{
			"phone": req.Phone,
		})
		errors.InternalError(c, "Could not send the verification code")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Verification code sent"})
}

// VerifyOTP exchanges a valid code for a token pair, creating the account
// on first login. When the request carries a guest cart token, the guest
// cart is merged into the account cart and the names of any lines that
// could not be moved come back as skipped_items.
// POST /api/v1/auth/otp/verify
func (ctrl *AuthController) VerifyOTP(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "phone and code are required")
		return
	}

	user, pair, err := ctrl.authService.VerifyOTP(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrPhoneInvalid):
			errors.BadRequest(c, errors.AuthPhoneInvalid, "Please enter a valid 10 digit mobile number")
		case stderrors.Is(err, service.ErrOTPExpired):
			errors.BadRequest(c, errors.AuthCodeExpired, "The code has expired, please request a new one")
		case stderrors.Is(err, service.ErrOTPInvalid):
			errors.BadRequest(c, errors.AuthCodeInvalid, "The code is incorrect")
		default:
			log.Error("OTP verification failed", err, map[string]interface{}{
				"phone": req.Phone,
			})
			errors.InternalError(c, "")
		}
		return
	}

	response := gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	}

	if req.GuestCartToken != "" {
		skipped := []string{}
		summary, skippedItems, mergeErr := ctrl.cartService.MergeGuestCart(c.Request.Context(), user.ID, req.GuestCartToken)
		if mergeErr != nil {
			// The login already succeeded; a broken merge must not undo it.
			log.Error("Guest cart merge on login failed", mergeErr, map[string]interface{}{
				"user_id": user.ID,
			})
		} else {
			if skippedItems != nil {
				skipped = skippedItems
			}
			response["cart"] = summary
		}
		response["skipped_items"] = skipped
	}

	c.JSON(http.StatusOK, response)
}

// AdminLogin authenticates the back office account.
// POST /api/v1/auth/admin/login
func (ctrl *AuthController) AdminLogin(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "email and password are required")
		return
	}

	user, pair, err := ctrl.authService.AdminLogin(req.Email, req.Password)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrInvalidCredentials):
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthInvalidCredentials, "Email or password is incorrect")
		case stderrors.Is(err, service.ErrNotAdmin):
			errors.RespondWithError(c, http.StatusForbidden, errors.AuthzAdminOnly, "This account has no admin access")
		default:
			log.Error("Admin login failed", err, map[string]interface{}{
				"email": req.Email,
			})
			errors.InternalError(c, "")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Refresh exchanges a refresh token for a new pair.
// POST /api/v1/auth/refresh
func (ctrl *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "refresh_token is required")
		return
	}

	pair, err := ctrl.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Please sign in again")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// Logout revokes the caller's tokens.
// POST /api/v1/auth/logout
func (ctrl *AuthController) Logout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	accessToken := ""
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			accessToken = parts[1]
		}
	}

	if err := ctrl.authService.Logout(c.Request.Context(), accessToken, req.RefreshToken); err != nil {
		log.Error("Logout failed", err, nil)
		errors.InternalError(c, "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// Me returns the authenticated identity.
// GET /api/v1/auth/me
func (ctrl *AuthController) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}
	phone, _ := middleware.GetUserPhone(c)
	role, _ := middleware.GetUserRole(c)

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"phone":   phone,
		"role":    role,
	})
}
