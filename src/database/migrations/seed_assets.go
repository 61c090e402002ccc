package migrations

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingcore/src/model"
)

// seedReferenceAssets loads the initial tradeable asset catalogue. Asset
// reference data is read-mostly; runtime code never writes this table.
func seedReferenceAssets(db *gorm.DB) error {
	assets := []model.Asset{
		{Symbol: "BTC", Name: "Bitcoin", AssetType: model.AssetTypeCrypto, Exchange: "binance", IsActive: true},
		{Symbol: "ETH", Name: "Ethereum", AssetType: model.AssetTypeCrypto, Exchange: "binance", IsActive: true},
		{Symbol: "SOL", Name: "Solana", AssetType: model.AssetTypeCrypto, Exchange: "binance", IsActive: true},
		{Symbol: "AAPL", Name: "Apple Inc.", AssetType: model.AssetTypeStock, Exchange: "nasdaq", Sector: "technology", IsActive: true},
		{Symbol: "MSFT", Name: "Microsoft Corp.", AssetType: model.AssetTypeStock, Exchange: "nasdaq", Sector: "technology", IsActive: true},
		{Symbol: "VWCE", Name: "Vanguard FTSE All-World", AssetType: model.AssetTypeETF, Exchange: "xetra", IsActive: true},
		{Symbol: "XAU", Name: "Gold", AssetType: model.AssetTypeCommodity, IsActive: true},
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}},
		DoNothing: true,
	}).Create(&assets).Error
	if err != nil {
		return fmt.Errorf("seed reference assets: %w", err)
	}

	return nil
}
