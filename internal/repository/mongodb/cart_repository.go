package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type lineDocument struct {
	Product  string `bson:"product"`
	Quantity int    `bson:"quantity"`
}

type cartDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Products  []lineDocument     `bson:"products"`
	Version   int                `bson:"version"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d cartDocument) toDomain() *domain.Cart {
	lines := make([]domain.CartLineItem, 0, len(d.Products))
	for _, p := range d.Products {
		lines = append(lines, domain.CartLineItem{ProductID: p.Product, Quantity: p.Quantity})
	}
	return &domain.Cart{
		ID:        d.ID.Hex(),
		Lines:     lines,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func lineDocuments(lines []domain.CartLineItem) []lineDocument {
	docs := make([]lineDocument, 0, len(lines))
	for _, l := range lines {
		docs = append(docs, lineDocument{Product: l.ProductID, Quantity: l.Quantity})
	}
	return docs
}

type cartRepository struct {
	collection *mongo.Collection
}

// NewCartRepository creates a document-store CartRepository over the carts collection
func NewCartRepository(db *mongo.Database) repository.CartRepository {
	return &cartRepository{collection: db.Collection("carts")}
}

func (r *cartRepository) Create(ctx context.Context, lines []domain.CartLineItem) (*domain.Cart, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := cartDocument{
		ID:        primitive.NewObjectID(),
		Products:  lineDocuments(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	oid, err := primitive.ObjectIDFromHex(domain.CanonicalID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to parse cart id %q: %w", id, err)
	}

	var doc cartDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by ID: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	return r.save(ctx, cart, nil)
}

func (r *cartRepository) SaveVersioned(ctx context.Context, cart *domain.Cart, expectedVersion int) error {
	return r.save(ctx, cart, &expectedVersion)
}

func (r *cartRepository) save(ctx context.Context, cart *domain.Cart, expectedVersion *int) error {
	oid, err := primitive.ObjectIDFromHex(cart.ID)
	if err != nil {
		return fmt.Errorf("failed to parse cart id %q: %w", cart.ID, err)
	}

	filter := bson.M{"_id": oid}
	if expectedVersion != nil {
		filter["version"] = *expectedVersion
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{"products": lineDocuments(cart.Lines), "updated_at": now},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"version": 1})

	var doc cartDocument
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if expectedVersion != nil {
				return r.classifyMiss(ctx, oid)
			}
			return repository.ErrCartNotFound
		}
		return fmt.Errorf("failed to save cart: %w", err)
	}

	cart.Version = doc.Version
	cart.UpdatedAt = now
	return nil
}

func (r *cartRepository) classifyMiss(ctx context.Context, oid primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to check cart existence: %w", err)
	}
	if n == 0 {
		return repository.ErrCartNotFound
	}
	return repository.ErrCartVersionConflict
}
