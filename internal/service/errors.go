package service

import (
	"errors"
	"fmt"

	"bybench/internal/apperr"
)

var (
	ErrUserNotFound       = apperr.NotFound("user_not_found", "User not found")
	ErrDuplicateUser      = apperr.Conflict("user_exists", "User with this email or phone already exists")
	ErrAlreadyVerified    = apperr.Conflict("already_verified", "User is already verified")
	ErrAccountSuspended   = apperr.Forbidden("account_suspended", "Your account has been suspended. Please contact support.")
	ErrOTPExpired         = apperr.Validation("otp_expired", "OTP has expired. Please request a new one.")
	ErrTooManyAttempts    = apperr.RateLimited("otp_attempts_exceeded", "Too many invalid attempts. Your account has been suspended.")
	ErrInvalidCredentials = apperr.Unauthorized("invalid_credentials", "Invalid email or password")
	ErrWrongPassword      = apperr.Unauthorized("invalid_password", "Current password is incorrect")
	ErrNotVerified        = apperr.Forbidden("account_not_verified", "Please verify your email before logging in")
	ErrInvalidToken       = apperr.Unauthenticated("invalid_token", "Invalid or expired token")
	ErrWeakPassword       = apperr.Validation("weak_password", "Password must be at least 8 characters")
	ErrInvalidRole        = apperr.Validation("invalid_role", "Role must be USER or SELLER")

	ErrSelfConversation        = apperr.Forbidden("self_conversation", "You cannot start a conversation with yourself")
	ErrCommercialPartyRequired = apperr.Forbidden("seller_required", "A conversation needs a seller or an admin")
	ErrConversationNotFound    = apperr.NotFound("conversation_not_found", "Conversation not found")
	ErrNotParticipant          = apperr.Forbidden("not_participant", "You are not a participant of this conversation")
	ErrNotBlocker              = apperr.Forbidden("not_blocker", "Only the user who blocked this conversation can unblock it")
	ErrConversationBlocked     = apperr.Forbidden("conversation_blocked", "This conversation is blocked")
	ErrBlockedByOther          = apperr.Conflict("blocked_by_other", "The other participant has already blocked this conversation")
	ErrEmptyMessage            = apperr.Validation("empty_message", "A message needs text or an attachment")

	ErrNotSeller             = apperr.Forbidden("not_seller", "Only sellers can have a seller profile")
	ErrSellerNotApproved     = apperr.Forbidden("seller_not_approved", "Seller profile pending approval")
	ErrBlankProfileField     = apperr.Validation("blank_field", "Profile fields cannot be set to an empty value")
	ErrSellerProfileExists   = apperr.Conflict("seller_profile_exists", "Seller profile already exists")
	ErrSellerProfileNotFound = apperr.NotFound("seller_profile_not_found", "Seller profile not found")
	ErrInvalidSellerStatus   = apperr.Validation("invalid_status", "Status must be PENDING, APPROVED or REJECTED")

	ErrUnsupportedAttachment = apperr.Validation("unsupported_attachment", "Only jpeg, png, gif, webp, avif and svg images are allowed")
	ErrAttachmentTooLarge    = apperr.Validation("attachment_too_large", "Attachment exceeds the maximum size")
)

// ErrMailDispatch marks a failure of the outbound mail provider. It is not a
// domain error and surfaces as an internal error.
var ErrMailDispatch = errors.New("mail dispatch failed")

func invalidOTP(attemptsLeft int) error {
	return apperr.Validation("otp_invalid", fmt.Sprintf("Invalid OTP. Attempts left: %d", attemptsLeft))
}
