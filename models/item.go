package models

// Item is a category of recyclable material accepted at points
type Item struct {
	ID       int64  `json:"id" bson:"_id" yaml:"id"`
	Title    string `json:"title" bson:"title" yaml:"title"`
	Image    string `json:"-" bson:"image" yaml:"image"`
	ImageURL string `json:"image_url" bson:"-" yaml:"-"`
}
