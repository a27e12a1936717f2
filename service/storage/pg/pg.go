package pg

import (
	"context"

	"RTChat/service/storage"
	"RTChat/tools/errs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed membership store. The schema belongs to the
// REST layer; the gateway only reads channel_members and users.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errs.WrapMsg(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.WrapMsg(err, "ping postgres")
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) ListUserChannels(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT channel_id FROM channel_members WHERE user_id = $1`, userID)
	if err != nil {
		return nil, errs.WrapMsg(err, "list user channels")
	}
	defer rows.Close()

	var channels []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.WrapMsg(err, "scan channel id")
		}
		channels = append(channels, id)
	}
	return channels, rows.Err()
}

func (s *Store) IsMember(ctx context.Context, userID, channelID string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM channel_members WHERE user_id = $1 AND channel_id = $2)`,
		userID, channelID).Scan(&ok)
	if err != nil {
		return false, errs.WrapMsg(err, "check membership")
	}
	return ok, nil
}

func (s *Store) Username(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT username FROM users WHERE id = $1`, userID).Scan(&name)
	if err == pgx.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", errs.WrapMsg(err, "resolve username")
	}
	return name, nil
}

var _ storage.MembershipStore = (*Store)(nil)
