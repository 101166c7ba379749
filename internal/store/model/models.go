package model

import (
	"gorm.io/datatypes"
)

// AuthTokenModel is one persisted access token per brokerage account.
type AuthTokenModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	AccountID     string         `gorm:"column:account_id;uniqueIndex"`
	Token         string         `gorm:"column:token"`
	ExpiresAtUnix int64          `gorm:"column:expires_at"`
	RawResponse   datatypes.JSON `gorm:"column:raw_response"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (AuthTokenModel) TableName() string { return "auth_tokens" }

type OrderLogStatus int

const (
	OrderLogStatusUnknown OrderLogStatus = 0
	OrderLogStatusPlaced  OrderLogStatus = 1
	OrderLogStatusFailed  OrderLogStatus = 2
)

// OrderLogModel records every order the gateway attempted to place.
type OrderLogModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RequestID     string         `gorm:"column:request_id;uniqueIndex"`
	Venue         string         `gorm:"column:venue;index"`
	Symbol        string         `gorm:"column:symbol"`
	Side          string         `gorm:"column:side"`
	Kind          string         `gorm:"column:kind"`
	Amount        string         `gorm:"column:amount"`
	Cost          string         `gorm:"column:cost"`
	Price         string         `gorm:"column:price"`
	OrderID       string         `gorm:"column:order_id"`
	Status        OrderLogStatus `gorm:"column:status"`
	Error         string         `gorm:"column:error"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	CreatedAtUnix int64          `gorm:"column:created_at;index"`
}

func (OrderLogModel) TableName() string { return "order_logs" }
