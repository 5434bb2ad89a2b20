package organization

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Organization struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LocationLat     float64   `json:"locationLat"`
	LocationLng     float64   `json:"locationLng"`
	PerimeterRadius int       `json:"perimeterRadius"` // meters
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Summary is the public listing shape of an organization.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var (
	ErrNotFound      = errors.New("organization not found")
	ErrInvalidRadius = errors.New("perimeter radius must be positive")
)

type Location struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type CreateOrganizationRequest struct {
	Name            string   `json:"name" binding:"required,min=2,max=120"`
	Location        Location `json:"location" binding:"required"`
	PerimeterRadius int      `json:"perimeterRadius" binding:"required,min=1,max=100000"`
}

func NewFromCreateRequest(req CreateOrganizationRequest, now time.Time) Organization {
	var lat, lng float64
	if req.Location.Lat != nil {
		lat = *req.Location.Lat
	}
	if req.Location.Lng != nil {
		lng = *req.Location.Lng
	}

	return Organization{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(req.Name),
		LocationLat:     lat,
		LocationLng:     lng,
		PerimeterRadius: req.PerimeterRadius,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
