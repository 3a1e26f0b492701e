package external

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client is one provisioned SMPP account.
type Client struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	SystemID string `gorm:"unique;not null" json:"system_id"`
	Password string `gorm:"not null" json:"password"`
	Name     string `json:"name"`
	Disabled bool   `json:"disabled"`
}

func (Client) TableName() string { return "smpp_clients" }

// MessageRecord is one delivered message as stored by the postgres
// provider.
type MessageRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SystemID    string    `gorm:"index;not null" json:"system_id"`
	SourceAddr  string    `json:"source_addr"`
	DestAddr    string    `json:"dest_addr"`
	Body        string    `json:"body"`
	DeliveredAt time.Time `json:"delivered_at"`
}

func (MessageRecord) TableName() string { return "smpp_message_records" }

// RecordProvider authenticates against the smpp_clients table and records
// every delivered message in smpp_message_records.
type RecordProvider struct {
	db *gorm.DB
}

// NewRecordProvider connects to postgres and migrates the two tables.
func NewRecordProvider(dsn string) (*RecordProvider, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Client{}, &MessageRecord{}); err != nil {
		return nil, err
	}
	return &RecordProvider{db: db}, nil
}

func (p *RecordProvider) Authenticate(ctx context.Context, systemID, password string) (bool, error) {
	var client Client
	err := p.db.WithContext(ctx).Where("system_id = ?", systemID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if client.Disabled {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(client.Password), []byte(password)) == 1, nil
}

func (p *RecordProvider) Deliver(ctx context.Context, sm *ShortMessage) (DeliveryStatus, error) {
	record := MessageRecord{
		SystemID:    sm.SystemID,
		SourceAddr:  sm.SourceAddr,
		DestAddr:    sm.DestinationAddr,
		Body:        sm.Body,
		DeliveredAt: time.Now().UTC(),
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		log.WithFields(log.Fields{
			"system_id": sm.SystemID,
			"error":     err,
		}).Error("Failed to insert message record")
		return StatusTryLater, err
	}
	return StatusOK, nil
}
