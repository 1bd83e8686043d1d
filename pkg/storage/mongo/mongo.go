// Package mongo stores cached photos in a MongoDB collection.
package mongo

import (
	"context"
	"time"

	"github.com/jmgilman/go/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/roverlens/marsphotos/pkg/storage"
)

const (
	DefaultDatabase   = "marsphotos"
	collectionName    = "photos"
	disconnectTimeout = 5 * time.Second
)

// photoDoc is the persisted shape of a storage.ImageRecord.
type photoDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Rover     string        `bson:"rover"`
	Sol       *int          `bson:"sol,omitempty"`
	EarthDate string        `bson:"earth_date,omitempty"`
	Camera    string        `bson:"camera,omitempty"`
	PhotoID   int64         `bson:"photo_id"`
	ImgSrc    string        `bson:"img_src"`
	Page      int           `bson:"page"`
	SavedAt   time.Time     `bson:"saved_at"`
}

type Repository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// Connect opens a client for uri and pings the primary. An empty database
// name selects DefaultDatabase.
func Connect(ctx context.Context, uri, database string) (*Repository, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "connect mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, errors.CodeDatabase, "ping mongo")
	}
	if database == "" {
		database = DefaultDatabase
	}
	return NewRepository(client, client.Database(database)), nil
}

// NewRepository wraps an existing client and database.
func NewRepository(client *mongo.Client, db *mongo.Database) *Repository {
	return &Repository{client: client, coll: db.Collection(collectionName)}
}

// EnsureSchema creates the compound index used by Lookup.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "rover", Value: 1},
			{Key: "page", Value: 1},
			{Key: "sol", Value: 1},
			{Key: "earth_date", Value: 1},
		},
		Options: options.Index().SetName("photos_lookup_idx"),
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "create photos index")
	}
	return nil
}

func (r *Repository) Lookup(ctx context.Context, f storage.Filter) ([]storage.ImageRecord, error) {
	cur, err := r.coll.Find(ctx, lookupFilter(f), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "lookup photos")
	}
	var docs []photoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabase, "decode photos")
	}

	records := make([]storage.ImageRecord, 0, len(docs))
	for _, d := range docs {
		records = append(records, storage.ImageRecord{
			Rover:      d.Rover,
			Sol:        d.Sol,
			EarthDate:  d.EarthDate,
			Camera:     d.Camera,
			ExternalID: d.PhotoID,
			ImageURL:   d.ImgSrc,
			Page:       d.Page,
			FetchedAt:  d.SavedAt.UTC(),
		})
	}
	return records, nil
}

func lookupFilter(f storage.Filter) bson.D {
	filter := bson.D{
		{Key: "rover", Value: f.Rover},
		{Key: "page", Value: f.Page},
	}
	if f.Sol != nil {
		filter = append(filter, bson.E{Key: "sol", Value: *f.Sol})
	} else {
		filter = append(filter, bson.E{Key: "earth_date", Value: f.EarthDate})
	}
	if f.Camera != "" {
		filter = append(filter, bson.E{Key: "camera", Value: f.Camera})
	}
	return filter
}

// InsertMany writes records unordered so one bad document does not stop the
// rest of the batch.
func (r *Repository) InsertMany(ctx context.Context, records []storage.ImageRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	docs := make([]photoDoc, 0, len(records))
	for _, rec := range records {
		docs = append(docs, photoDoc{
			Rover:     rec.Rover,
			Sol:       rec.Sol,
			EarthDate: rec.EarthDate,
			Camera:    rec.Camera,
			PhotoID:   rec.ExternalID,
			ImgSrc:    rec.ImageURL,
			Page:      rec.Page,
			SavedAt:   rec.FetchedAt.UTC(),
		})
	}
	res, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	inserted := 0
	if res != nil {
		inserted = len(res.InsertedIDs)
	}
	if err != nil {
		return inserted, errors.Wrap(err, errors.CodeDatabase, "insert photos")
	}
	return inserted, nil
}

func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := r.client.Disconnect(ctx); err != nil {
		return errors.Wrap(err, errors.CodeDatabase, "disconnect mongo")
	}
	return nil
}
