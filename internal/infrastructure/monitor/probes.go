package monitor

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/notifyagg/repository/bolt"
)

func PostgresProbe(pool *pgxpool.Pool) Check {
	if pool == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func RedisProbe(client *redislib.Client) Check {
	if client == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// BoltProbe checks that the digest file is open and readable.
func BoltProbe(store *bolt.DigestStore) Check {
	if store == nil {
		return nil
	}
	return func(context.Context) error {
		_, err := store.Size()
		return err
	}
}
