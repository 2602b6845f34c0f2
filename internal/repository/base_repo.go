package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/internal/config"
	"github.com/mbeoliero/ringlink/internal/entity"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repositories holds all repositories and implements Store on MySQL
type Repositories struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Unread *UnreadRepo

	*CallRepo
	*ConversationRepo
	*ContactRepo
	*MessageRepo
	*BillRepo
	*ProfileRepo
}

var _ Store = (*Repositories)(nil)

// NewRepositories creates all repositories
func NewRepositories(cfg *config.Config) (*Repositories, error) {
	// Initialize MySQL
	db, err := initMySQL(cfg)
	if err != nil {
		return nil, err
	}

	// Initialize Redis
	rdb := initRedis(cfg)

	return newRepositories(db, rdb), nil
}

func newRepositories(db *gorm.DB, rdb *redis.Client) *Repositories {
	return &Repositories{
		DB:               db,
		Redis:            rdb,
		Unread:           NewUnreadRepo(rdb),
		CallRepo:         NewCallRepo(db),
		ConversationRepo: NewConversationRepo(db),
		ContactRepo:      NewContactRepo(db),
		MessageRepo:      NewMessageRepo(db),
		BillRepo:         NewBillRepo(db),
		ProfileRepo:      NewProfileRepo(db),
	}
}

// initMySQL initializes MySQL connection
func initMySQL(cfg *config.Config) (*gorm.DB, error) {
	var logLevel logger.LogLevel
	if cfg.Server.Mode == "debug" {
		logLevel = logger.Info
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// AutoMigrate creates or updates the tables
func (r *Repositories) AutoMigrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(
		&entity.CallSession{},
		&entity.Conversation{},
		&entity.Contact{},
		&entity.Message{},
		&entity.BillDetail{},
		&entity.Profile{},
	)
}

// Close closes all connections
func (r *Repositories) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return r.Redis.Close()
}

// Transaction executes fn in a transaction
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}

// WithConversationLock locks the conversation row with SELECT ... FOR UPDATE
// and runs fn against repositories bound to the transaction. A conversation
// that does not exist yet is not an error.
func (r *Repositories) WithConversationLock(ctx context.Context, conversationId string, fn func(Store) error) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		var conv entity.Conversation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", conversationId).
			Take(&conv).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return fn(newRepositories(tx, r.Redis))
	})
}

// CheckConnection checks if database and redis connections are alive
func (r *Repositories) CheckConnection(ctx context.Context) error {
	// Check MySQL
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.CtxError(ctx, "mysql ping failed: %v", err)
		return err
	}

	// Check Redis
	if err := r.Redis.Ping(ctx).Err(); err != nil {
		log.CtxError(ctx, "redis ping failed: %v", err)
		return err
	}

	return nil
}
