package controller

import (
	stderrors "errors"
	"net/http"

	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/service"
	"github.com/aabhushan/aabhushan-backend/internal/errors"
	"github.com/aabhushan/aabhushan-backend/internal/middleware"
	"github.com/gin-gonic/gin"
)

type AddressController struct {
	addressService *service.AddressService
}

func NewAddressController(addressService *service.AddressService) *AddressController {
	return &AddressController{addressService: addressService}
}

type addressRequest struct {
	Name      string `json:"name" binding:"required"`
	Phone     string `json:"phone" binding:"required"`
	Line1     string `json:"line1" binding:"required"`
	Line2     string `json:"line2"`
	City      string `json:"city" binding:"required"`
	State     string `json:"state" binding:"required"`
	Pincode   string `json:"pincode" binding:"required,len=6"`
	IsDefault bool   `json:"is_default"`
}

// ListAddresses returns the caller's saved addresses, default first.
// GET /api/v1/addresses
func (ctrl *AddressController) ListAddresses(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	addresses, err := ctrl.addressService.ListAddresses(userID)
	if err != nil {
		log.Error("Failed to list addresses", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Could not load your addresses")
		return
	}

	c.JSON(http.StatusOK, gin.H{"addresses": addresses})
}

// CreateAddress saves a new address for the caller.
// POST /api/v1/addresses
func (ctrl *AddressController) CreateAddress(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid address data")
		return
	}

	address := &model.Address{
		UserID:    userID,
		Name:      req.Name,
		Phone:     req.Phone,
		Line1:     req.Line1,
		Line2:     req.Line2,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		IsDefault: req.IsDefault,
	}
	if err := ctrl.addressService.CreateAddress(address); err != nil {
		log.Error("Failed to create address", err, map[string]interface{}{
			"user_id": userID,
		})
		errors.InternalError(c, "Could not save the address")
		return
	}

	c.JSON(http.StatusCreated, address)
}

// UpdateAddress edits one of the caller's addresses.
// PUT /api/v1/addresses/:id
func (ctrl *AddressController) UpdateAddress(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	addressID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.BadRequest(c, errors.ValidationInvalidInput, "Invalid address data")
		return
	}

	address, err := ctrl.addressService.UpdateAddress(userID, addressID, &model.Address{
		Name:      req.Name,
		Phone:     req.Phone,
		Line1:     req.Line1,
		Line2:     req.Line2,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		ctrl.respondAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}

// DeleteAddress removes one of the caller's addresses.
// DELETE /api/v1/addresses/:id
func (ctrl *AddressController) DeleteAddress(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	addressID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := ctrl.addressService.DeleteAddress(userID, addressID); err != nil {
		ctrl.respondAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted"})
}

// SetDefaultAddress promotes an address to the default.
// POST /api/v1/addresses/:id/default
func (ctrl *AddressController) SetDefaultAddress(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		errors.Unauthorized(c, "")
		return
	}

	addressID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	address, err := ctrl.addressService.SetDefaultAddress(userID, addressID)
	if err != nil {
		ctrl.respondAddressError(c, err)
		return
	}

	c.JSON(http.StatusOK, address)
}

func (ctrl *AddressController) respondAddressError(c *gin.Context, err error) {
	log := middleware.GetLoggerFromContext(c)

	if stderrors.Is(err, service.ErrAddressNotFound) {
		errors.NotFound(c, errors.AddressNotFound, "Address not found")
		return
	}
	log.Error("Address operation failed", err, nil)
	errors.InternalError(c, "")
}
