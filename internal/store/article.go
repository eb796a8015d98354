package store

import "go.mongodb.org/mongo-driver/bson/primitive"

type Article struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero" yaml:"-"`
	Name     string             `bson:"name" json:"name" yaml:"name"`
	Upvotes  int                `bson:"upvotes" json:"upvotes" yaml:"upvotes"`
	Comments []Comment          `bson:"comments" json:"comments" yaml:"comments"`
}

type Comment struct {
	Username string `bson:"username" json:"username" yaml:"username"`
	Text     string `bson:"text" json:"text" yaml:"text"`
}

// normalize keeps an empty comment list rendering as [] rather than null.
func (a *Article) normalize() *Article {
	if a.Comments == nil {
		a.Comments = []Comment{}
	}
	return a
}
