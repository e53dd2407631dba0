package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bybench/internal/models"
	"bybench/internal/repository/memstore"
)

func TestProfileService(t *testing.T) {
	store := memstore.New()
	store.Users().Put(models.User{ID: "u1", Email: "u1@example.com", Role: models.UserRoleUser})
	store.Users().Put(models.User{ID: "s1", Email: "s1@example.com", Role: models.UserRoleSeller})
	profiles := NewProfileService(store.Users(), store.Sellers(), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := profiles.CreateSellerProfile(ctx, "u1", SellerProfileInput{CompanyName: "Acme"})
	assert.ErrorIs(t, err, ErrNotSeller)

	_, err = profiles.CreateSellerProfile(ctx, "ghost", SellerProfileInput{CompanyName: "Acme"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	me, err := profiles.Me(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, me.SellerProfile)

	created, err := profiles.CreateSellerProfile(ctx, "s1", SellerProfileInput{
		CompanyName: " Acme Ltd ", CompanyAddress: "1 Main St", City: "Dhaka", Country: "BD",
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", created.CompanyName)
	assert.Equal(t, models.SellerStatusPending, created.Status)

	_, err = profiles.CreateSellerProfile(ctx, "s1", SellerProfileInput{CompanyName: "Again"})
	assert.ErrorIs(t, err, ErrSellerProfileExists)

	me, err = profiles.Me(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, me.SellerProfile)
	assert.Equal(t, created.ID, me.SellerProfile.ID)

	me, err = profiles.Me(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, me.SellerProfile)

	_, err = profiles.Me(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func ptr(s string) *string { return &s }

func TestUpdateProfile(t *testing.T) {
	store := memstore.New()
	store.Users().Put(models.User{ID: "u1", FirstName: "Bob", LastName: "Stone", Email: "u1@example.com", Phone: "+15550000001", Role: models.UserRoleUser})
	store.Users().Put(models.User{ID: "u2", Email: "u2@example.com", Phone: "+15550000002", Role: models.UserRoleUser})
	uploader := &fakeUploader{}
	profiles := NewProfileService(store.Users(), store.Sellers(), NewAttachmentService(uploader, 1024, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	data := pngBytes(64)
	updated, err := profiles.UpdateProfile(ctx, "u1", UpdateProfileInput{
		NickName: ptr(" bobby "),
		Picture:  &AttachmentInput{Filename: "me.png", Size: int64(len(data)), Body: bytes.NewReader(data)},
	})
	require.NoError(t, err)
	assert.Equal(t, "bobby", updated.User.NickName)
	assert.Equal(t, "Bob", updated.User.FirstName, "absent fields keep their value")
	require.NotNil(t, updated.User.ProfilePicture)
	assert.Equal(t, "https://cdn.example.com/chat/file.png", *updated.User.ProfilePicture)
	require.Len(t, uploader.bodies, 1)

	_, err = profiles.UpdateProfile(ctx, "u1", UpdateProfileInput{Phone: ptr("+15550000002")})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	_, err = profiles.UpdateProfile(ctx, "u1", UpdateProfileInput{FirstName: ptr("   ")})
	assert.ErrorIs(t, err, ErrBlankProfileField)

	_, err = profiles.UpdateProfile(ctx, "u1", UpdateProfileInput{Seller: models.SellerPatch{City: ptr("Dhaka")}})
	assert.ErrorIs(t, err, ErrNotSeller)

	_, err = profiles.UpdateProfile(ctx, "ghost", UpdateProfileInput{NickName: ptr("x")})
	assert.ErrorIs(t, err, ErrUserNotFound)

	bad := []byte("not an image at all")
	_, err = profiles.UpdateProfile(ctx, "u1", UpdateProfileInput{
		Picture: &AttachmentInput{Filename: "x.txt", Size: int64(len(bad)), Body: bytes.NewReader(bad)},
	})
	assert.ErrorIs(t, err, ErrUnsupportedAttachment)
}

func TestUpdateProfileSellerDetailsNeedApproval(t *testing.T) {
	store := memstore.New()
	store.Users().Put(models.User{ID: "s1", FirstName: "Sam", Email: "s1@example.com", Role: models.UserRoleSeller})
	profiles := NewProfileService(store.Users(), store.Sellers(), nil, zerolog.Nop())
	ctx := context.Background()
	patch := UpdateProfileInput{Seller: models.SellerPatch{CompanyName: ptr("Acme Global"), City: ptr(" Chittagong ")}}

	_, err := profiles.UpdateProfile(ctx, "s1", patch)
	assert.ErrorIs(t, err, ErrSellerProfileNotFound)

	_, err = profiles.CreateSellerProfile(ctx, "s1", SellerProfileInput{CompanyName: "Acme", CompanyAddress: "1 Main St", City: "Dhaka", Country: "BD"})
	require.NoError(t, err)

	_, err = profiles.UpdateProfile(ctx, "s1", patch)
	assert.ErrorIs(t, err, ErrSellerNotApproved)

	_, err = store.Sellers().UpdateStatus(ctx, "s1", models.SellerStatusApproved)
	require.NoError(t, err)

	updated, err := profiles.UpdateProfile(ctx, "s1", patch)
	require.NoError(t, err)
	require.NotNil(t, updated.SellerProfile)
	assert.Equal(t, "Acme Global", updated.SellerProfile.CompanyName)
	assert.Equal(t, "Chittagong", updated.SellerProfile.City)
	assert.Equal(t, "1 Main St", updated.SellerProfile.CompanyAddress)
	assert.Equal(t, models.SellerStatusApproved, updated.SellerProfile.Status)
}
