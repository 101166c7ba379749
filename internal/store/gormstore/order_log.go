package gormstore

import (
	"context"
	"fmt"
	"time"

	storemodel "poa/internal/store/model"

	"gorm.io/datatypes"
)

type OrderLogStatus = storemodel.OrderLogStatus

const (
	OrderLogPlaced = storemodel.OrderLogStatusPlaced
	OrderLogFailed = storemodel.OrderLogStatusFailed
)

// OrderLogRecord is one journal entry for an order attempt.
type OrderLogRecord struct {
	RequestID string
	Venue     string
	Symbol    string
	Side      string
	Kind      string
	Amount    string
	Cost      string
	Price     string
	OrderID   string
	Status    OrderLogStatus
	Error     string
	Payload   []byte
	CreatedAt time.Time
}

func (s *GormStore) AppendOrderLog(ctx context.Context, rec OrderLogRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	if rec.RequestID == "" {
		return fmt.Errorf("request_id 必填")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m := orderLogModel{
		RequestID:     rec.RequestID,
		Venue:         rec.Venue,
		Symbol:        rec.Symbol,
		Side:          rec.Side,
		Kind:          rec.Kind,
		Amount:        rec.Amount,
		Cost:          rec.Cost,
		Price:         rec.Price,
		OrderID:       rec.OrderID,
		Status:        rec.Status,
		Error:         rec.Error,
		CreatedAtUnix: rec.CreatedAt.UnixMilli(),
	}
	if len(rec.Payload) > 0 {
		m.Payload = datatypes.JSON(rec.Payload)
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

// ListOrderLogs returns the newest entries first.
func (s *GormStore) ListOrderLogs(ctx context.Context, venue string, limit int) ([]OrderLogRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if venue != "" {
		q = q.Where("venue = ?", venue)
	}
	var models []orderLogModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]OrderLogRecord, 0, len(models))
	for _, m := range models {
		out = append(out, OrderLogRecord{
			RequestID: m.RequestID,
			Venue:     m.Venue,
			Symbol:    m.Symbol,
			Side:      m.Side,
			Kind:      m.Kind,
			Amount:    m.Amount,
			Cost:      m.Cost,
			Price:     m.Price,
			OrderID:   m.OrderID,
			Status:    m.Status,
			Error:     m.Error,
			Payload:   []byte(m.Payload),
			CreatedAt: time.UnixMilli(m.CreatedAtUnix),
		})
	}
	return out, nil
}
