package models

import "time"

type UserRole string

const (
	UserRoleUser   UserRole = "USER"
	UserRoleSeller UserRole = "SELLER"
	UserRoleAdmin  UserRole = "ADMIN"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleUser, UserRoleSeller, UserRoleAdmin:
		return true
	}
	return false
}

// Commercial reports whether the role may take part in a conversation on its own.
func (r UserRole) Commercial() bool {
	return r == UserRoleSeller || r == UserRoleAdmin
}

type User struct {
	ID             string
	FirstName      string
	LastName       string
	NickName       string
	Email          string
	Phone          string
	PasswordHash   string
	Role           UserRole
	ProfilePicture *string
	IsVerified     bool
	IsSuspended    bool
	OTPCode        *string
	OTPExpiresAt   *time.Time
	OTPAttempts    int
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PublicProfile is what other users may see.
type PublicProfile struct {
	ID             string   `json:"id"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	NickName       string   `json:"nickName"`
	Role           UserRole `json:"role"`
	ProfilePicture *string  `json:"profilePicture"`
}

func (u User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		NickName:       u.NickName,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
	}
}

type SellerStatus string

const (
	SellerStatusPending  SellerStatus = "PENDING"
	SellerStatusApproved SellerStatus = "APPROVED"
	SellerStatusRejected SellerStatus = "REJECTED"
)

func (s SellerStatus) Valid() bool {
	switch s {
	case SellerStatusPending, SellerStatusApproved, SellerStatusRejected:
		return true
	}
	return false
}

type SellerProfile struct {
	ID               string       `json:"id"`
	UserID           string       `json:"userId"`
	CompanyName      string       `json:"companyName"`
	CompanyAddress   string       `json:"companyAddress"`
	City             string       `json:"city"`
	Country          string       `json:"country"`
	Status           SellerStatus `json:"status"`
	PaymentAccountID *string      `json:"paymentAccountId"`
	PaymentOnboarded bool         `json:"paymentOnboarded"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// UserPatch is a partial identity update; nil fields keep their value.
type UserPatch struct {
	FirstName      *string
	LastName       *string
	NickName       *string
	Email          *string
	Phone          *string
	ProfilePicture *string
}

type SellerPatch struct {
	CompanyName    *string
	CompanyAddress *string
	City           *string
	Country        *string
}

func (p SellerPatch) Empty() bool {
	return p.CompanyName == nil && p.CompanyAddress == nil && p.City == nil && p.Country == nil
}
