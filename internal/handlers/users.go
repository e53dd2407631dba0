package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bybench/internal/models"
	"bybench/internal/service"
)

type sellerProfileRequest struct {
	CompanyName    string `json:"companyName" binding:"required,max=200"`
	CompanyAddress string `json:"companyAddress" binding:"required,max=500"`
	City           string `json:"city" binding:"required,max=100"`
	Country        string `json:"country" binding:"required,max=100"`
}

func (h HandlerSet) CreateSellerProfile(c *gin.Context) {
	var req sellerProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	profile, err := h.profiles.CreateSellerProfile(c.Request.Context(), currentUser(c).ID, service.SellerProfileInput{
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
		City:           req.City,
		Country:        req.Country,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{"sellerProfile": profile})
}

type sellerPatchFields struct {
	CompanyName    *string `json:"companyName" form:"companyName" binding:"omitempty,max=200"`
	CompanyAddress *string `json:"companyAddress" form:"companyAddress" binding:"omitempty,max=500"`
	City           *string `json:"city" form:"city" binding:"omitempty,max=100"`
	Country        *string `json:"country" form:"country" binding:"omitempty,max=100"`
}

func (f sellerPatchFields) patch() models.SellerPatch {
	return models.SellerPatch{
		CompanyName:    f.CompanyName,
		CompanyAddress: f.CompanyAddress,
		City:           f.City,
		Country:        f.Country,
	}
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName" form:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" form:"lastName" binding:"omitempty,max=100"`
	NickName  *string `json:"nickName" form:"nickName" binding:"omitempty,max=100"`
	Phone     *string `json:"phone" form:"phone" binding:"omitempty,e164"`
	sellerPatchFields
}

// UpdateProfile takes JSON, or multipart with an optional "profilePicture" file.
func (h HandlerSet) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}

	input := service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		NickName:  req.NickName,
		Phone:     req.Phone,
		Seller:    req.patch(),
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("profilePicture")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			h.bindError(c, err)
			return
		default:
			file, err := header.Open()
			if err != nil {
				h.bindError(c, err)
				return
			}
			defer file.Close()
			input.Picture = &service.AttachmentInput{Filename: header.Filename, Size: header.Size, Body: file}
		}
	}

	profile, err := h.profiles.UpdateProfile(c.Request.Context(), currentUser(c).ID, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user":          toUserResponse(profile.User),
		"sellerProfile": profile.SellerProfile,
	})
}

func (h HandlerSet) AdminToggleSuspension(c *gin.Context) {
	userID, valid := pathID(c, "id")
	if !valid {
		return
	}

	suspended, err := h.admin.ToggleSuspension(c.Request.Context(), currentUser(c).ID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"userId": userID, "isSuspended": suspended})
}

type sellerStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING APPROVED REJECTED"`
}

func (h HandlerSet) AdminSetSellerStatus(c *gin.Context) {
	userID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req sellerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	profile, err := h.admin.SetSellerStatus(c.Request.Context(), currentUser(c).ID, userID, models.SellerStatus(req.Status))
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"sellerProfile": profile})
}

type adminSellerRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	LastName  *string `json:"lastName" binding:"omitempty,max=100"`
	Email     *string `json:"email" binding:"omitempty,email"`
	Phone     *string `json:"phone" binding:"omitempty,e164"`
	Password  *string `json:"password" binding:"omitempty,max=128"`
	sellerPatchFields
}

func (h HandlerSet) AdminUpdateSeller(c *gin.Context) {
	userID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req adminSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	profile, err := h.admin.UpdateSeller(c.Request.Context(), currentUser(c).ID, userID, service.SellerUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Seller:    req.patch(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user":          toUserResponse(profile.User),
		"sellerProfile": profile.SellerProfile,
	})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	userID, valid := pathID(c, "id")
	if !valid {
		return
	}

	if err := h.admin.DeleteUser(c.Request.Context(), currentUser(c).ID, userID); err != nil {
		h.respondError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "User deleted"})
}
