package model

import "time"

// Site represents a monitored stream gauging station.
type Site struct {
	SiteID    string
	Name      string
	StateCode string
	HUCCode   string
	Latitude  float64
	Longitude float64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
