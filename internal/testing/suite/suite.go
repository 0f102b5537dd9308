package suite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const (
	expireDuration  = 120
	maxWaitDuration = 120 * time.Second
)

const (
	redisPort  = "6379/tcp"
	redisImage = "redis"
	redisTag   = "alpine"

	mongoPort  = "27017/tcp"
	mongoImage = "mongo"
	mongoTag   = "7"
)

type Suite struct {
	*testing.T
	Logger *zap.SugaredLogger

	Redis *redis.Client
	Mongo *mongo.Database
}

// New starts throwaway Redis and MongoDB containers for one test. Tests are
// skipped when no Docker daemon is reachable.
func New(t *testing.T) (context.Context, *Suite) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), maxWaitDuration)
	t.Cleanup(cancel)

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err = pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	pool.MaxWait = maxWaitDuration

	st := &Suite{
		T:      t,
		Logger: zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)).Sugar(),
	}

	redisHost := run(t, pool, redisImage, redisTag, redisPort)
	if err = pool.Retry(func() error {
		st.Redis = redis.NewClient(&redis.Options{Addr: redisHost})
		return st.Redis.Ping(ctx).Err()
	}); err != nil {
		t.Fatalf("could not connect to redis: %v", err)
	}
	t.Cleanup(func() { _ = st.Redis.Close() })

	mongoHost := run(t, pool, mongoImage, mongoTag, mongoPort)
	var client *mongo.Client
	if err = pool.Retry(func() error {
		client, err = mongo.Connect(ctx, options.Client().ApplyURI(fmt.Sprintf("mongodb://%s", mongoHost)))
		if err != nil {
			return err
		}
		return client.Ping(ctx, nil)
	}); err != nil {
		t.Fatalf("could not connect to mongo: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	st.Mongo = client.Database("goplay_test")

	return ctx, st
}

func run(t *testing.T, pool *dockertest.Pool, image, tag, port string) string {
	t.Helper()

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: image,
		Tag:        tag,
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("could not start %s: %v", image, err)
	}

	// hard kill in case cleanup never runs
	_ = resource.Expire(expireDuration)

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Errorf("could not purge %s: %v", image, err)
		}
	})

	return resource.GetHostPort(port)
}
