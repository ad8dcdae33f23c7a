package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Code        string             `bson:"code"`
	Price       float64            `bson:"price"`
	Status      string             `bson:"status"`
	Stock       int                `bson:"stock"`
	Category    string             `bson:"category"`
	Thumbnails  []string           `bson:"thumbnails"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d productDocument) toDomain() *domain.Product {
	thumbnails := d.Thumbnails
	if thumbnails == nil {
		thumbnails = []string{}
	}
	return &domain.Product{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Code:        d.Code,
		Price:       d.Price,
		Status:      domain.ProductStatus(d.Status),
		Stock:       d.Stock,
		Category:    d.Category,
		Thumbnails:  thumbnails,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func fieldsDocument(fields domain.ProductFields) bson.M {
	var p domain.Product
	fields.Apply(&p)
	return bson.M{
		"title":       p.Title,
		"description": p.Description,
		"code":        p.Code,
		"price":       p.Price,
		"status":      string(p.Status),
		"stock":       p.Stock,
		"category":    p.Category,
		"thumbnails":  p.Thumbnails,
	}
}

type productRepository struct {
	collection *mongo.Collection
}

// NewProductRepository creates a document-store ProductRepository over the products collection
func NewProductRepository(db *mongo.Database) repository.ProductRepository {
	return &productRepository{collection: db.Collection("products")}
}

func productFilter(filter domain.ProductFilter) bson.M {
	if filter.Query == "" {
		return bson.M{}
	}
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Query), Options: "i"}
	return bson.M{"$or": []bson.M{
		{"category": pattern},
		{"status": pattern},
	}}
}

func productSort(sort domain.SortDirection) bson.D {
	switch sort {
	case domain.SortAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case domain.SortDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "_id", Value: 1}}
	}
}

func (r *productRepository) Count(ctx context.Context, filter domain.ProductFilter) (int, error) {
	n, err := r.collection.CountDocuments(ctx, productFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return int(n), nil
}

func (r *productRepository) Find(ctx context.Context, filter domain.ProductFilter, sort domain.SortDirection, skip, limit int) ([]*domain.Product, error) {
	opts := options.Find().
		SetSort(productSort(sort)).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, productFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return decodeProducts(ctx, cursor)
}

func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(domain.CanonicalID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to parse product id %q: %w", id, err)
	}

	var doc productDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []string) ([]*domain.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(domain.CanonicalID(id)); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []*domain.Product{}, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("failed to find products by IDs: %w", err)
	}

	return decodeProducts(ctx, cursor)
}

func (r *productRepository) Create(ctx context.Context, fields domain.ProductFields) (*domain.Product, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	var p domain.Product
	fields.Apply(&p)

	doc := productDocument{
		ID:          primitive.NewObjectID(),
		Title:       p.Title,
		Description: p.Description,
		Code:        p.Code,
		Price:       p.Price,
		Status:      string(p.Status),
		Stock:       p.Stock,
		Category:    p.Category,
		Thumbnails:  p.Thumbnails,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *productRepository) UpdateByID(ctx context.Context, id string, fields domain.ProductFields) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(domain.CanonicalID(id))
	if err != nil {
		return nil, fmt.Errorf("failed to parse product id %q: %w", id, err)
	}

	set := fieldsDocument(fields)
	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc productDocument
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return doc.toDomain(), nil
}

func (r *productRepository) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(domain.CanonicalID(id))
	if err != nil {
		return fmt.Errorf("failed to parse product id %q: %w", id, err)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.DeletedCount == 0 {
		return repository.ErrProductNotFound
	}

	return nil
}

// EnsureIndexes creates the secondary indexes used by product listing
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}},
	}

	if _, err := db.Collection("products").Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	return nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]*domain.Product, error) {
	defer cursor.Close(ctx)

	products := []*domain.Product{}
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.toDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
