// Package store holds the article model, the repository over the articles
// collection and the connection scope every request runs its queries in.
package store

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("article not found")

// Articles runs article queries against the database handed out by a Scope.
//
// With Atomic set, upvotes and comments are applied with a single
// findAndModify. Without it they read the document, write the new value back
// with $set and read it again, so concurrent writers can lose updates.
type Articles struct {
	Collection string
	Atomic     bool
}

func NewArticles(collection string, atomic bool) *Articles {
	return &Articles{Collection: collection, Atomic: atomic}
}

func (a *Articles) coll(db *mongo.Database) *mongo.Collection {
	return db.Collection(a.Collection)
}

func byName(name string) bson.D {
	return bson.D{{Key: "name", Value: name}}
}

// Find returns ErrNotFound when no article has the given name.
func (a *Articles) Find(ctx context.Context, db *mongo.Database, name string) (*Article, error) {
	var article Article
	err := a.coll(db).FindOne(ctx, byName(name)).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find article %q", name)
	}
	return article.normalize(), nil
}

// FindDocument returns the stored document as it is, with every field it
// carries. A null comments field comes back as an empty list. Returns
// ErrNotFound when no article has the given name.
func (a *Articles) FindDocument(ctx context.Context, db *mongo.Database, name string) (bson.M, error) {
	var doc bson.M
	err := a.coll(db).FindOne(ctx, byName(name)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find article %q", name)
	}
	if comments, ok := doc["comments"]; ok && comments == nil {
		doc["comments"] = bson.A{}
	}
	return doc, nil
}

func (a *Articles) Upvote(ctx context.Context, db *mongo.Database, name string) (*Article, error) {
	if a.Atomic {
		return a.findAndUpdate(ctx, db, name, bson.M{"$inc": bson.M{"upvotes": 1}})
	}

	article, err := a.Find(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if err := a.set(ctx, db, name, "upvotes", article.Upvotes+1); err != nil {
		return nil, err
	}
	return a.Find(ctx, db, name)
}

func (a *Articles) AddComment(ctx context.Context, db *mongo.Database, name string, comment Comment) (*Article, error) {
	if a.Atomic {
		return a.findAndUpdate(ctx, db, name, bson.M{"$push": bson.M{"comments": comment}})
	}

	article, err := a.Find(ctx, db, name)
	if err != nil {
		return nil, err
	}
	if err := a.set(ctx, db, name, "comments", append(article.Comments, comment)); err != nil {
		return nil, err
	}
	return a.Find(ctx, db, name)
}

// Seed upserts each article by name and returns how many were written.
func (a *Articles) Seed(ctx context.Context, db *mongo.Database, articles []Article) (int, error) {
	opts := options.Replace().SetUpsert(true)
	for i, article := range articles {
		article.normalize()
		if _, err := a.coll(db).ReplaceOne(ctx, byName(article.Name), article, opts); err != nil {
			return i, errors.Wrapf(err, "seed article %q", article.Name)
		}
	}
	return len(articles), nil
}

func (a *Articles) set(ctx context.Context, db *mongo.Database, name, field string, value interface{}) error {
	_, err := a.coll(db).UpdateOne(ctx, byName(name), bson.M{"$set": bson.M{field: value}})
	return errors.Wrapf(err, "update %s of article %q", field, name)
}

func (a *Articles) findAndUpdate(ctx context.Context, db *mongo.Database, name string, update bson.M) (*Article, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var article Article
	err := a.coll(db).FindOneAndUpdate(ctx, byName(name), update, opts).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "update article %q", name)
	}
	return article.normalize(), nil
}
