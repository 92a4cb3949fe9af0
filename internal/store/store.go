package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-authgate/sallyport/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store persists client registrations, audit logs and named secrets.
type Store struct {
	db *gorm.DB
}

// New opens the database, migrates the schema and loads seed clients from
// seedFile when one is given.
func New(ctx context.Context, driver, dsn, seedFile string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite serialises writers; one connection also keeps a :memory:
		// database visible to every caller.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.OAuthApplication{},
		&models.AuditLog{},
		&models.Secret{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	s := &Store{db: db}

	if seedFile != "" {
		n, err := s.SeedClientsFromFile(ctx, seedFile)
		if err != nil {
			return nil, fmt.Errorf("failed to seed clients: %w", err)
		}
		log.Printf("[Store] Seeded %d client(s) from %s", n, seedFile)
	}

	return s, nil
}

// Client operations

func (s *Store) GetClient(ctx context.Context, clientID string) (*models.OAuthApplication, error) {
	var app models.OAuthApplication
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (s *Store) ListClients(ctx context.Context) ([]models.OAuthApplication, error) {
	var apps []models.OAuthApplication
	err := s.db.WithContext(ctx).Order("client_id").Find(&apps).Error
	return apps, err
}

func (s *Store) CreateClient(ctx context.Context, app *models.OAuthApplication) error {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "client_id"}}, DoNothing: true}).
		Create(app)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClientConflict
	}
	return nil
}

// UpsertClient inserts app or overwrites the registration with the same
// client_id. The row id and creation time of an existing row are kept.
func (s *Store) UpsertClient(ctx context.Context, app *models.OAuthApplication) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "client_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"client_secret",
			"client_name",
			"client_type",
			"grant_types",
			"response_types",
			"scopes",
			"redirect_uris",
			"tenant_id",
			"is_active",
			"updated_at",
		}),
	}).Create(app).Error
}

// Secret operations

// GetSecret returns the value stored under name.
func (s *Store) GetSecret(ctx context.Context, name string) (string, error) {
	var secret models.Secret
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&secret).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrRecordNotFound
		}
		return "", err
	}
	return secret.Value, nil
}

// PutSecretIfAbsent stores value under name unless the name is taken. It
// reports whether this call wrote the row.
func (s *Store) PutSecretIfAbsent(ctx context.Context, name, value string) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Secret{Name: name, Value: value})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Audit log operations

func (s *Store) CreateAuditLogBatch(ctx context.Context, entries []*models.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(entries, 100).Error
}

// DeleteOldAuditLogs removes entries created before cutoff and returns the
// number of rows deleted.
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return res.RowsAffected, res.Error
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the connection pool, giving up when ctx is done.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("database close timeout: %w", ctx.Err())
	}
}
