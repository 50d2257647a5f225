package model

// Instrument 表示系统中可交易的标的
type Instrument struct {
	Symbol     string `gorm:"primaryKey" json:"Symbol"`
	Token      string `gorm:"index" json:"Token"` // feed-gateway token
	Name       string `gorm:"index" json:"Name"`
	ExchangeID string `json:"ExchangeID"`
	LotSize    int    `json:"LotSize"`
	IsActive   bool   `gorm:"default:true" json:"IsActive"`
}
