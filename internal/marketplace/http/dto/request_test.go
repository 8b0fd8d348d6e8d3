package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/marketsync/internal/marketplace/domain"
)

func TestCreateListingRequest_Validate(t *testing.T) {
	valid := func() CreateListingRequest {
		return CreateListingRequest{
			HostID:            uuid.Must(uuid.NewV7()).String(),
			Title:             "Loft",
			NightlyPriceCents: 9000,
			Amenities:         []string{"wifi"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *CreateListingRequest)
		wantErr bool
	}{
		{name: "valid", mutate: func(r *CreateListingRequest) {}},
		{name: "valid status", mutate: func(r *CreateListingRequest) { r.Status = "active" }},
		{name: "remote origin", mutate: func(r *CreateListingRequest) { r.Origin = "remote" }},
		{name: "missing host", mutate: func(r *CreateListingRequest) { r.HostID = "" }, wantErr: true},
		{name: "blank title", mutate: func(r *CreateListingRequest) { r.Title = "   " }, wantErr: true},
		{name: "negative price", mutate: func(r *CreateListingRequest) { r.NightlyPriceCents = -1 }, wantErr: true},
		{name: "padded amenity", mutate: func(r *CreateListingRequest) { r.Amenities = []string{" wifi"} }, wantErr: true},
		{name: "unknown status", mutate: func(r *CreateListingRequest) { r.Status = "sold" }, wantErr: true},
		{name: "unknown origin", mutate: func(r *CreateListingRequest) { r.Origin = "import" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUpdateListingRequest_Validate(t *testing.T) {
	blank := " "
	sold := "sold"
	archived := "archived"
	padded := []string{"wifi "}
	negative := int64(-5)

	assert.NoError(t, (&UpdateListingRequest{}).Validate())
	assert.NoError(t, (&UpdateListingRequest{Status: &archived}).Validate())
	assert.Error(t, (&UpdateListingRequest{Title: &blank}).Validate())
	assert.Error(t, (&UpdateListingRequest{Status: &sold}).Validate())
	assert.Error(t, (&UpdateListingRequest{Amenities: &padded}).Validate())
	assert.Error(t, (&UpdateListingRequest{NightlyPriceCents: &negative}).Validate())
}

func TestUpdateListingRequest_ToInput(t *testing.T) {
	archived := "archived"
	input := (&UpdateListingRequest{Status: &archived, Origin: "remote"}).ToInput()

	require.NotNil(t, input.Status)
	assert.Equal(t, domain.ListingArchived, *input.Status)
	assert.Nil(t, input.Title)
	assert.Equal(t, "remote", input.Origin)
}

func TestCreateProposalRequest(t *testing.T) {
	req := CreateProposalRequest{
		ListingID: uuid.Must(uuid.NewV7()).String(),
		GuestID:   uuid.Must(uuid.NewV7()).String(),
		CheckIn:   "2026-07-01",
		CheckOut:  "2026-07-04",
	}
	require.NoError(t, req.Validate())

	input := req.ToInput()
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), input.CheckIn)
	assert.Equal(t, time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC), input.CheckOut)

	req.CheckOut = "July 4th"
	assert.Error(t, req.Validate())
}

func TestUpdateProposalStatusRequest_Validate(t *testing.T) {
	assert.NoError(t, (&UpdateProposalStatusRequest{Status: "declined"}).Validate())
	assert.Error(t, (&UpdateProposalStatusRequest{}).Validate())
	assert.Error(t, (&UpdateProposalStatusRequest{Status: "pending"}).Validate())
}

func TestFavoriteRequest_Validate(t *testing.T) {
	req := FavoriteRequest{UserID: uuid.Must(uuid.NewV7()).String(), ListingID: uuid.Must(uuid.NewV7()).String()}
	assert.NoError(t, req.Validate())

	req.ListingID = "lst-1"
	assert.Error(t, req.Validate())
}
