package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/sneakpeak/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrCartNotFound = errors.New("cart projection not found")

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type cartDocument struct {
	ID          int64          `bson:"_id"`
	UserID      int64          `bson:"user_id"`
	User        string         `bson:"user"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
	ExpiredAt   time.Time      `bson:"expired_at"`
	CartProduct []itemDocument `bson:"cart_product"`
}

type itemDocument struct {
	ID         int64                `bson:"id"`
	Reference  string               `bson:"reference"`
	Name       string               `bson:"name"`
	Color      string               `bson:"color"`
	Size       string               `bson:"size"`
	Category   string               `bson:"category"`
	Brand      string               `bson:"brand"`
	Image      string               `bson:"image"`
	Stock      int                  `bson:"stock"`
	Quantity   int                  `bson:"quantity"`
	UnitPrice  primitive.Decimal128 `bson:"unit_price"`
	Adjustment primitive.Decimal128 `bson:"adjustment"`
	Total      primitive.Decimal128 `bson:"total"`
}

// MongoStore keeps one document per cart, always written as a whole.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("carts")}
}

func (m *MongoStore) Get(ctx context.Context, userID int64) (*domain.CartProjection, error) {
	var doc cartDocument
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return fromDocument(doc)
}

// Replace overwrites the cart document and drops any stale document left for the
// same user by an earlier cart whose tombstone has not arrived yet.
func (m *MongoStore) Replace(ctx context.Context, p *domain.CartProjection) error {
	doc, err := toDocument(p)
	if err != nil {
		return err
	}

	if _, err := m.collection.DeleteMany(ctx, bson.M{"user_id": p.UserID, "_id": bson.M{"$ne": p.ID}}); err != nil {
		return fmt.Errorf("failed to drop stale carts: %w", err)
	}

	_, err = m.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	return nil
}

// Delete removes the cart document. Deleting a missing document is not an error.
func (m *MongoStore) Delete(ctx context.Context, cartID int64) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": cartID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func toDocument(p *domain.CartProjection) (cartDocument, error) {
	doc := cartDocument{
		ID:          p.ID,
		UserID:      p.UserID,
		User:        p.User,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		ExpiredAt:   p.ExpiredAt,
		CartProduct: make([]itemDocument, len(p.CartProduct)),
	}
	for i, item := range p.CartProduct {
		unit, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return cartDocument{}, err
		}
		adj, err := toDecimal128(item.Adjustment)
		if err != nil {
			return cartDocument{}, err
		}
		total, err := toDecimal128(item.Total)
		if err != nil {
			return cartDocument{}, err
		}
		doc.CartProduct[i] = itemDocument{
			ID: item.ID, Reference: item.Reference, Name: item.Name, Color: item.Color, Size: item.Size,
			Category: item.Category, Brand: item.Brand, Image: item.Image, Stock: item.Stock,
			Quantity: item.Quantity, UnitPrice: unit, Adjustment: adj, Total: total,
		}
	}
	return doc, nil
}

func fromDocument(doc cartDocument) (*domain.CartProjection, error) {
	p := &domain.CartProjection{
		ID:          doc.ID,
		UserID:      doc.UserID,
		User:        doc.User,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ExpiredAt:   doc.ExpiredAt,
		CartProduct: make([]domain.CartItem, len(doc.CartProduct)),
	}
	for i, d := range doc.CartProduct {
		unit, err := decimal.NewFromString(d.UnitPrice.String())
		if err != nil {
			return nil, fmt.Errorf("decode unit price: %w", err)
		}
		adj, err := decimal.NewFromString(d.Adjustment.String())
		if err != nil {
			return nil, fmt.Errorf("decode adjustment: %w", err)
		}
		total, err := decimal.NewFromString(d.Total.String())
		if err != nil {
			return nil, fmt.Errorf("decode total: %w", err)
		}
		p.CartProduct[i] = domain.CartItem{
			ID: d.ID, Reference: d.Reference, Name: d.Name, Color: d.Color, Size: d.Size,
			Category: d.Category, Brand: d.Brand, Image: d.Image, Stock: d.Stock,
			Quantity: d.Quantity, UnitPrice: unit, Adjustment: adj, Total: total,
		}
	}
	return p, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode %s: %w", d, err)
	}
	return v, nil
}
