package server

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/repository"
	"storefront/internal/repository/file"
	"storefront/internal/repository/mongodb"

	"github.com/spf13/afero"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// OpenStore connects the storage backend named by cfg.Storage.Driver
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return openPostgresStore(ctx, cfg, logger)
	case config.DriverMongo:
		return openMongoStore(ctx, cfg, logger)
	case config.DriverFile:
		logger.Info("Using flat-file storage",
			zap.String("products", cfg.File.ProductsPath),
			zap.String("carts", cfg.File.CartsPath),
		)
		return NewFileStore(afero.NewOsFs(), cfg.File), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openPostgresStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, error) {
	dbService, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	db := dbService.DB()

	logger.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsDir, logger); err != nil {
		dbService.Close()
		return nil, err
	}

	return &repository.Store{
		Products: repository.NewProductRepository(db),
		Carts:    repository.NewCartRepository(db),
		Health:   dbService.Health,
		Close:    dbService.Close,
	}, nil
}

func openMongoStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Store, error) {
	db, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		logger.Warn("Failed to create product indexes", zap.Error(err))
	}

	return NewMongoStore(db), nil
}

// NewMongoStore wires the document-store repositories over db
func NewMongoStore(db *mongo.Database) *repository.Store {
	return &repository.Store{
		Products: mongodb.NewProductRepository(db),
		Carts:    mongodb.NewCartRepository(db),
		Health: func(ctx context.Context) map[string]string {
			return database.MongoHealth(ctx, db)
		},
		Close: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.Client().Disconnect(ctx)
		},
	}
}

// NewFileStore wires the flat-file repositories over fs
func NewFileStore(fs afero.Fs, cfg config.FileConfig) *repository.Store {
	return &repository.Store{
		Products: file.NewProductRepository(fs, cfg.ProductsPath),
		Carts:    file.NewCartRepository(fs, cfg.CartsPath),
		Health: func(ctx context.Context) map[string]string {
			return file.Health(fs, cfg.ProductsPath, cfg.CartsPath)
		},
		Close: func() error { return nil },
	}
}
