package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cyberpolicy/cracklab/internal/cracks/repository"
	"github.com/cyberpolicy/cracklab/internal/decrypt"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// challengeStore is what both the submit and provisioning paths need.
type challengeStore interface {
	repository.ChallengeStore
	repository.Pinger
}

// storeSet is the backend chosen by store.backend.
type storeSet struct {
	backend     string
	challenges  challengeStore
	submissions repository.SubmissionStore
	reports     decrypt.Store
	closers     []func()
}

func (s *storeSet) ping(ctx context.Context) error {
	return s.challenges.Ping(ctx)
}

func (s *storeSet) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, backend string, logger *zap.Logger) (*storeSet, error) {
	switch backend {
	case "", "memory":
		logger.Warn("using in-memory stores; state is lost on restart")
		mem := repository.NewMemoryStore()
		return &storeSet{backend: "memory", challenges: mem, submissions: mem, reports: decrypt.NewMemoryStore()}, nil

	case "postgres":
		db, err := pgxpool.New(ctx, viper.GetString("database.url"))
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		pg := repository.NewPostgresStore(db)
		return &storeSet{
			backend:     backend,
			challenges:  pg,
			submissions: pg,
			reports:     decrypt.NewPostgresStore(db),
			closers:     []func(){db.Close},
		}, nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("connected to redis", zap.String("addr", viper.GetString("redis.addr")))
		prefix := viper.GetString("redis.key_prefix")
		rs := repository.NewRedisStore(rdb, prefix)
		return &storeSet{
			backend:     backend,
			challenges:  rs,
			submissions: rs,
			reports:     decrypt.NewRedisStore(rdb, prefix),
			closers:     []func(){func() { rdb.Close() }},
		}, nil

	case "dynamodb":
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(viper.GetString("dynamodb.region")))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		endpoint := viper.GetString("dynamodb.endpoint")
		client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		ds := repository.NewDynamoStore(client,
			viper.GetString("dynamodb.challenges_table"),
			viper.GetString("dynamodb.submissions_table"),
		)
		if err := ds.Ping(ctx); err != nil {
			return nil, fmt.Errorf("describe dynamodb tables: %w", err)
		}
		logger.Info("using dynamodb",
			zap.String("region", cfg.Region),
			zap.String("challenges_table", viper.GetString("dynamodb.challenges_table")),
			zap.String("submissions_table", viper.GetString("dynamodb.submissions_table")),
		)
		return &storeSet{
			backend:     backend,
			challenges:  ds,
			submissions: ds,
			reports:     decrypt.NewDynamoStore(client, viper.GetString("dynamodb.reports_table")),
		}, nil
	}
	return nil, fmt.Errorf("unknown store.backend %q (want memory, postgres, redis or dynamodb)", backend)
}
