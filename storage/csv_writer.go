package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"autoria-scraper/models"
)

// csvHeader mirrors the cars table columns.
var csvHeader = []string{
	"id", "url", "title", "price_usd", "odometer", "username", "phone_number",
	"image_url", "images_count", "car_number", "car_vin", "datetime_found",
}

// CSVWriter exports cars to a CSV file, one row per car.
type CSVWriter struct {
	path string
}

func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Write saves all cars to the CSV file, creating the output directory if it
// does not exist. An existing file at the path is overwritten.
func (w *CSVWriter) Write(cars []models.Car) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer file.Close()

	// csv.NewWriter handles quoting, commas inside fields, line endings.
	writer := csv.NewWriter(file)

	writer.Write(csvHeader)
	for _, c := range cars {
		writer.Write([]string{
			strconv.FormatInt(c.ID, 10),
			c.URL,
			c.Title,
			strconv.Itoa(c.PriceUSD),
			strconv.Itoa(c.OdometerKm),
			c.SellerName,
			strconv.FormatInt(c.PhoneNumber, 10),
			c.ImageURL,
			strconv.Itoa(c.ImagesCount),
			c.PlateNumber,
			c.VIN,
			c.FoundAt.Format(time.RFC3339),
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv write: %w", err)
	}
	return nil
}
