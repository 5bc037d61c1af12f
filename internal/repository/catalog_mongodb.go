package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aspos-sync/internal/model"
)

// MongoDBCatalogRepository implements CatalogRepository using MongoDB.
type MongoDBCatalogRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBCatalogRepository connects and ensures the aspos_id index.
func NewMongoDBCatalogRepository(uri, database, collection string) (*MongoDBCatalogRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "aspos_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Printf("[MongoDB] Warning: failed to create aspos_id index: %v", err)
	}

	return &MongoDBCatalogRepository{client: client, collection: coll}, nil
}

// productDocument is the stored shape. Prices are decimal strings.
type productDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AsposID      string             `bson:"aspos_id"`
	Name         string             `bson:"name"`
	Description  string             `bson:"description"`
	Status       string             `bson:"status"`
	Published    bool               `bson:"published"`
	Price        string             `bson:"price"`
	RegularPrice string             `bson:"regular_price"`
	StoreIDs     []string           `bson:"store_ids"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d productDocument) toModel() (model.Product, error) {
	price, err := parseDocPrice(d.Price)
	if err != nil {
		return model.Product{}, fmt.Errorf("product %s price: %w", d.ID.Hex(), err)
	}
	regular, err := parseDocPrice(d.RegularPrice)
	if err != nil {
		return model.Product{}, fmt.Errorf("product %s regular price: %w", d.ID.Hex(), err)
	}
	ids := d.StoreIDs
	if ids == nil {
		ids = []string{}
	}
	return model.Product{
		ID:           d.ID.Hex(),
		AsposID:      d.AsposID,
		Name:         d.Name,
		Description:  d.Description,
		Status:       d.Status,
		Published:    d.Published,
		Price:        price,
		RegularPrice: regular,
		StoreIDs:     ids,
		UpdatedAt:    d.UpdatedAt,
	}, nil
}

// parseDocPrice reads a stored decimal string. A missing field is zero.
func parseDocPrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// FindByAsposID returns the first product with the given aspos id, or nil.
func (r *MongoDBCatalogRepository) FindByAsposID(ctx context.Context, asposID string) (*model.Product, error) {
	var doc productDocument
	err := r.collection.FindOne(ctx, bson.M{"aspos_id": asposID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product %s: %w", asposID, err)
	}
	p, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert creates a product document.
func (r *MongoDBCatalogRepository) Insert(ctx context.Context, p *model.Product) (string, error) {
	ids := p.StoreIDs
	if ids == nil {
		ids = []string{}
	}
	doc := productDocument{
		AsposID:      p.AsposID,
		Name:         p.Name,
		Description:  p.Description,
		Status:       p.Status,
		Published:    p.Published,
		Price:        p.Price.String(),
		RegularPrice: p.RegularPrice.String(),
		StoreIDs:     ids,
		UpdatedAt:    time.Now(),
	}
	res, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("failed to insert product %s: %w", p.AsposID, err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	p.ID = oid.Hex()
	return p.ID, nil
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return oid, fmt.Errorf("invalid catalog id %q: %w", id, err)
	}
	return oid, nil
}

// Update overwrites the descriptive fields.
func (r *MongoDBCatalogRepository) Update(ctx context.Context, p *model.Product) error {
	oid, err := objectID(p.ID)
	if err != nil {
		return err
	}
	_, err = r.collection.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
		"published":   p.Published,
		"updated_at":  time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update product %s: %w", p.ID, err)
	}
	return nil
}

// WriteAttributes sets aspos_id and the prices.
func (r *MongoDBCatalogRepository) WriteAttributes(ctx context.Context, id string, attrs model.ProductAttributes) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = r.collection.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"aspos_id":      attrs.AsposID,
		"price":         attrs.Price.String(),
		"regular_price": attrs.RegularPrice.String(),
	}})
	if err != nil {
		return fmt.Errorf("failed to write attributes for product %s: %w", id, err)
	}
	return nil
}

// AddStoreID adds storeID with $addToSet and returns the resulting list.
func (r *MongoDBCatalogRepository) AddStoreID(ctx context.Context, id, storeID string) ([]string, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc productDocument
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$addToSet": bson.M{"store_ids": storeID}}, opts).Decode(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to add store %s to product %s: %w", storeID, id, err)
	}
	return doc.StoreIDs, nil
}

// ListProducts returns every product carrying an aspos id.
func (r *MongoDBCatalogRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"aspos_id": bson.M{"$ne": ""}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	products := make([]model.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.toModel()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBCatalogRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ CatalogRepository = (*MongoDBCatalogRepository)(nil)
