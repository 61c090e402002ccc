package model

import "time"

const (
	AssetTypeCrypto    = "crypto"
	AssetTypeStock     = "stock"
	AssetTypeETF       = "etf"
	AssetTypeCommodity = "commodity"
)

// Asset is shared read-mostly reference data, looked up by symbol.
// Nothing in this service mutates assets besides the seed migration.
type Asset struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Symbol    string `gorm:"size:20;not null;uniqueIndex" json:"symbol"`
	Name      string `gorm:"size:100;not null" json:"name"`
	AssetType string `gorm:"size:20;not null;index" json:"asset_type"`
	Exchange  string `gorm:"size:50" json:"exchange,omitempty"`
	Sector    string `gorm:"size:50" json:"sector,omitempty"`
	IsActive  bool   `gorm:"not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

func (Asset) TableName() string {
	return "assets"
}
