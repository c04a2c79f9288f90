package main

import (
	"flag"
	"fmt"
	"log"

	"eve-trader/internal/config"
	"eve-trader/internal/database"
	"eve-trader/internal/models"

	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
)

var (
	regionID = flag.Int64("region", 0, "region id to export (0 = all regions)")
	typeID   = flag.Int64("type", 0, "type id to export (0 = all types)")
	outFile  = flag.String("out", "price_history.xlsx", "output file path")
)

// Exports stored price history to an XLSX workbook for offline analysis.
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}

	query := db.Order("recorded_at ASC")
	if *regionID > 0 {
		query = query.Where("region_id = ?", *regionID)
	}
	if *typeID > 0 {
		query = query.Where("type_id = ?", *typeID)
	}

	var rows []models.MarketPriceHistory
	if err := query.Find(&rows).Error; err != nil {
		log.Fatalf("Loading history failed: %v", err)
	}
	if len(rows) == 0 {
		log.Fatal("No history rows match the given filters")
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "History"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Type ID", "Region ID", "Buy Price", "Sell Price", "Buy Volume", "Sell Volume", "Recorded At"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for i, row := range rows {
		values := []interface{}{
			row.TypeID,
			row.RegionID,
			row.BuyPrice,
			row.SellPrice,
			row.BuyVolume,
			row.SellVolume,
			row.RecordedAt.Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(*outFile); err != nil {
		log.Fatalf("Saving workbook failed: %v", err)
	}
	fmt.Printf("Exported %d rows to %s\n", len(rows), *outFile)
}
