package analytics

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultCollection = "views"

type View struct {
	Name  string `bson:"name" json:"name"`
	Views int    `bson:"views" json:"views"`
}

type Views struct {
	Collection string
}

func NewViews(collection string) *Views {
	return &Views{Collection: collection}
}

func (v *Views) coll(db *mongo.Database) *mongo.Collection {
	return db.Collection(v.Collection)
}

// Record adds one view, creating the counter on first sight.
func (v *Views) Record(ctx context.Context, db *mongo.Database, name string) error {
	_, err := v.coll(db).UpdateOne(ctx,
		bson.D{{Key: "name", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: 1}}}},
		options.Update().SetUpsert(true),
	)
	return errors.Wrapf(err, "record view of %q", name)
}

// Get returns a zero count for names never viewed.
func (v *Views) Get(ctx context.Context, db *mongo.Database, name string) (*View, error) {
	result := View{Name: name}
	err := v.coll(db).FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&result)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(err, "get views of %q", name)
	}
	return &result, nil
}

// List returns every counter, most viewed first.
func (v *Views) List(ctx context.Context, db *mongo.Database) ([]View, error) {
	opts := options.Find().SetSort(bson.D{{Key: "views", Value: -1}, {Key: "name", Value: 1}})
	cursor, err := v.coll(db).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list views")
	}

	results := []View{}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, errors.Wrap(err, "decode views")
	}
	return results, nil
}
