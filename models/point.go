package models

import "time"

// DefaultPointImage is stored for points created without a picture
const DefaultPointImage = "https://images.unsplash.com/photo-1556767576-5ec41e3239ea?auto=format&fit=crop&w=400&q=60"

type Point struct {
	ID        int64     `json:"id" bson:"_id"`
	Image     string    `json:"image" bson:"image"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Whatsapp  string    `json:"whatsapp" bson:"whatsapp"`
	Latitude  float64   `json:"latitude" bson:"latitude"`
	Longitude float64   `json:"longitude" bson:"longitude"`
	UF        string    `json:"uf" bson:"uf"`
	City      string    `json:"city" bson:"city"`
	Items     []int64   `json:"items,omitempty" bson:"-"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	// Distance from the searched coordinate, set only by radius queries
	DistanceKm float64 `json:"distance_km,omitempty" bson:"-"`
}

// PointItem links a point to one accepted catalog item
type PointItem struct {
	PointID int64 `json:"point_id" bson:"point_id"`
	ItemID  int64 `json:"item_id" bson:"item_id"`
}

// CreatePointInput is the payload submitted by the creation form
type CreatePointInput struct {
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Whatsapp  string  `json:"whatsapp"`
	UF        string  `json:"uf"`
	City      string  `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Items     []int64 `json:"items"`
}

// CreatedPoint is the 201 body of a create; items is always present, even
// when empty.
type CreatedPoint struct {
	Point
	Items []int64 `json:"items"`
}

// PointFilter narrows GET /points. Empty fields are ignored; Items matches
// points accepting any of the listed ids.
type PointFilter struct {
	City     string
	UF       string
	Items    []int64
	Near     *GeoPoint
	RadiusKm float64
}

// PointDetail is a point together with the catalog items it accepts
type PointDetail struct {
	Point Point  `json:"point"`
	Items []Item `json:"items"`
}

type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point; coordinates are stored lon first.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lon, lat}}
}

func (g GeoPoint) Lat() float64 { return g.Coordinates[1] }
func (g GeoPoint) Lon() float64 { return g.Coordinates[0] }
