package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoDatabase keeps one MongoDB collection per document kind. Transactions
// need a replica set.
type MongoDatabase struct {
	docOps

	client *mongo.Client
	db     *mongo.Database
	logger *log.Logger
}

// mongoDoc is the stored shape: indexed fields next to the document body.
type mongoDoc struct {
	ID      string   `bson:"_id"`
	Owner   string   `bson:"owner"`
	Group   string   `bson:"group"`
	Status  string   `bson:"status"`
	Version int64    `bson:"version"`
	Body    bson.Raw `bson:"body"`
}

// NewMongoDatabase connects to uri and uses the named database.
func NewMongoDatabase(ctx context.Context, uri, name string) (*MongoDatabase, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx) //nolint:errcheck
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	m := &MongoDatabase{
		client: client,
		db:     client.Database(name),
		logger: log.FromContext(ctx).WithPrefix("mongo"),
	}
	m.docOps = docOps{raw: mongoRaw{db: m.db}}
	m.logger.Info("mongodb connection established", "database", name)
	return m, nil
}

// RunTransaction implements DatabaseInterface with a snapshot, majority
// committed session transaction. Write conflicts surface as ErrTransactionConflict.
func (m *MongoDatabase) RunTransaction(ctx context.Context, fn TxFunc) error {
	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txOpts); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := fn(sc, docOps{raw: mongoRaw{db: m.db}}); err != nil {
			if aerr := sess.AbortTransaction(context.WithoutCancel(sc)); aerr != nil {
				m.logger.Warn("failed to abort transaction", "err", aerr)
			}
			return err
		}
		if err := sess.CommitTransaction(sc); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", wrapMongoError(err))
		}
		return nil
	})
}

// EnsureSchema creates every collection with its meta indexes.
func (m *MongoDatabase) EnsureSchema(ctx context.Context) error {
	for _, coll := range []string{
		CollOrganizations, CollUsers, CollCredentials, CollProjects, CollSubmissions,
		CollTracking, CollProfiles, CollChallenges, CollTeams, CollInvitations, CollOutbox,
	} {
		_, err := m.db.Collection(coll).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "group", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		})
		if err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// HealthCheck 健康检查
func (m *MongoDatabase) HealthCheck(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close 关闭连接
func (m *MongoDatabase) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func wrapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError") {
		return ErrTransactionConflict
	}
	return err
}

// mongoRaw implements rawStore. Inside RunTransaction the ctx it receives is
// the session context, which binds every call to the transaction.
type mongoRaw struct {
	db *mongo.Database
}

func (r mongoRaw) get(ctx context.Context, coll, id string) ([]byte, error) {
	var doc mongoDoc
	if err := r.db.Collection(coll).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, wrapMongoError(err)
	}
	return bson.MarshalExtJSON(doc.Body, false, false)
}

func (r mongoRaw) insert(ctx context.Context, coll, id string, meta docMeta, data []byte) error {
	var body bson.D
	if err := bson.UnmarshalExtJSON(data, false, &body); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, coll, id, err)
	}
	_, err := r.db.Collection(coll).InsertOne(ctx, bson.M{
		"_id":     id,
		"owner":   meta.Owner,
		"group":   meta.Group,
		"status":  meta.Status,
		"version": int64(1),
		"body":    body,
	})
	return wrapMongoError(err)
}

func (r mongoRaw) put(ctx context.Context, coll, id string, meta docMeta, data []byte) error {
	var body bson.D
	if err := bson.UnmarshalExtJSON(data, false, &body); err != nil {
		return fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, coll, id, err)
	}
	update := bson.M{
		"$set": bson.M{
			"owner":  meta.Owner,
			"group":  meta.Group,
			"status": meta.Status,
			"body":   body,
		},
		"$inc": bson.M{"version": int64(1)},
	}
	_, err := r.db.Collection(coll).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	return wrapMongoError(err)
}

func (r mongoRaw) list(ctx context.Context, coll string, f docFilter) ([][]byte, error) {
	filter := bson.M{}
	if f.Owner != "" {
		filter["owner"] = f.Owner
	}
	if f.Group != "" {
		filter["group"] = f.Group
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	cur, err := r.db.Collection(coll).Find(ctx, filter)
	if err != nil {
		return nil, wrapMongoError(err)
	}
	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapMongoError(err)
	}

	out := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		data, err := bson.MarshalExtJSON(doc.Body, false, false)
		if err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, coll, doc.ID, err)
		}
		out = append(out, data)
	}
	return out, nil
}
