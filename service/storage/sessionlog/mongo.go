package sessionlog

import (
	"context"
	"time"

	"RTChat/service/storage"
	"RTChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collection = "user_session_log"

// Mongo writes session lifecycle audit records. Writes are best effort; the
// registry never blocks on this sink.
type Mongo struct {
	db *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Mongo, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cli, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.WrapMsg(err, "connect mongo")
	}
	if err := cli.Ping(cctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, errs.WrapMsg(err, "ping mongo")
	}
	return &Mongo{db: cli.Database(database)}, nil
}

func (m *Mongo) LogSession(ctx context.Context, ev storage.SessionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	_, err := m.db.Collection(collection).InsertOne(ctx, ev)
	return errs.WrapMsg(err, "insert session log")
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.db.Client().Disconnect(ctx)
}

var _ storage.SessionLogger = (*Mongo)(nil)
