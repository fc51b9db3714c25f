package repository

import (
	"context"
	"errors"
	"regexp"

	apperrors "github.com/umalmyha/customer-records/internal/errors"
	"github.com/umalmyha/customer-records/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const customersCollection = "customers"

var (
	pageSort   = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	searchSort = bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}
)

type countryProjection struct {
	CreatedAt int64 `bson:"createdAt"`
	Address   struct {
		Country string `bson:"country"`
	} `bson:"address"`
}

// MongoCustomerRepository is CustomerRepository backed by mongo collection
type MongoCustomerRepository struct {
	coll *mongo.Collection
}

// NewMongoCustomerRepository builds CustomerRepository over customers collection of db
func NewMongoCustomerRepository(db *mongo.Database) *MongoCustomerRepository {
	return &MongoCustomerRepository{coll: db.Collection(customersCollection)}
}

// EnsureIndexes creates indexes listing and search rely on
func (r *MongoCustomerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: pageSort, Options: options.Index().SetName("created_at_desc_id_desc")},
		{Keys: searchSort, Options: options.Index().SetName("name_asc_id_asc")},
	})
	return err
}

func (r *MongoCustomerRepository) FindByID(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoCustomerRepository) Create(ctx context.Context, c *model.Customer) error {
	generateID(c)
	_, err := r.coll.InsertOne(ctx, c)
	return err
}

func (r *MongoCustomerRepository) Update(ctx context.Context, c *model.Customer) error {
	upd := bson.M{"$set": bson.M{
		"name":      c.Name,
		"email":     c.Email,
		"phone":     c.Phone,
		"address":   c.Address,
		"photoURL":  c.PhotoURL,
		"updatedAt": c.UpdatedAt,
	}}

	res, err := r.coll.UpdateByID(ctx, c.ID, upd)
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		return apperrors.NewNotFoundErr("customer " + c.ID + " doesn't exist")
	}
	return nil
}

func (r *MongoCustomerRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *MongoCustomerRepository) FindPage(ctx context.Context, size int, after *model.Cursor) ([]*model.Customer, error) {
	filter := bson.M{}
	if after != nil {
		filter = bson.M{"$or": bson.A{
			bson.M{"createdAt": bson.M{"$lt": after.CreatedAt()}},
			bson.M{"createdAt": after.CreatedAt(), "_id": bson.M{"$lt": after.ID()}},
		}}
	}

	opts := options.Find().SetSort(pageSort).SetLimit(int64(size))
	return r.find(ctx, filter, opts)
}

func (r *MongoCustomerRepository) FindByNamePrefix(ctx context.Context, prefix string) ([]*model.Customer, error) {
	filter := bson.M{"name": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(prefix)}}
	return r.find(ctx, filter, options.Find().SetSort(searchSort))
}

func (r *MongoCustomerRepository) Statistics(ctx context.Context, now int64) (*model.Statistics, error) {
	opts := options.Find().SetProjection(bson.M{"createdAt": 1, "address.country": 1})

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	b := model.NewStatisticsBuilder(now)
	for cursor.Next(ctx) {
		var p countryProjection
		if err := cursor.Decode(&p); err != nil {
			return nil, err
		}
		b.Add(p.CreatedAt, p.Address.Country)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (r *MongoCustomerRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]*model.Customer, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	customers := make([]*model.Customer, 0)
	if err := cursor.All(ctx, &customers); err != nil {
		return nil, err
	}
	return customers, nil
}
