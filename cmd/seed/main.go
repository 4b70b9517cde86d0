package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/aabhushan/aabhushan-backend/config"
	"github.com/aabhushan/aabhushan-backend/internal/app/model"
	"github.com/aabhushan/aabhushan-backend/internal/app/repository"
	"github.com/aabhushan/aabhushan-backend/internal/db"
)

// Imports a product catalog from an XLSX file with the columns:
// Category | SubCategory | Name | Description | Price | Stock | ThumbnailURL
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	productRepo := repository.NewProductRepository(db.GetDB())

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, skipped, err := readProductsFromXLSX(db.GetDB(), filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total products to import: %d (skipped %d rows)\n", len(products), skipped)
	if len(products) == 0 {
		fmt.Println("Nothing to import.")
		return
	}

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

func readProductsFromXLSX(gdb *gorm.DB, filePath string) ([]model.Product, int, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, 0, fmt.Errorf("no sheets found in XLSX file")
	}

	fmt.Printf("Reading sheet: %s\n", sheetName)

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("no data found in XLSX file")
	}

	// Categories and sub-categories are created on first sight so the
	// spreadsheet can reference them by name.
	categoryIDs := make(map[string]uint)
	subCategoryIDs := make(map[string]*uint)

	var products []model.Product
	seen := make(map[string]bool)
	skipped := 0

	for i, row := range rows {
		if i == 0 {
			fmt.Printf("Headers: %v\n", row)
			continue
		}
		if len(row) < 6 {
			skipped++
			continue
		}

		categoryName := strings.TrimSpace(row[0])
		subCategoryName := strings.TrimSpace(row[1])
		name := strings.TrimSpace(row[2])
		description := strings.TrimSpace(row[3])
		priceStr := strings.TrimSpace(row[4])
		stockStr := strings.TrimSpace(row[5])
		thumbnailURL := ""
		if len(row) > 6 {
			thumbnailURL = strings.TrimSpace(row[6])
		}

		if categoryName == "" || name == "" {
			skipped++
			continue
		}

		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price <= 0 {
			skipped++
			continue
		}

		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock < 0 {
			stock = 0
		}

		// Duplicate rows within the file are collapsed.
		key := categoryName + "|" + name
		if seen[key] {
			skipped++
			continue
		}
		seen[key] = true

		categoryID, ok := categoryIDs[categoryName]
		if !ok {
			category := model.Category{Name: categoryName}
			if err := gdb.Where("name = ?", categoryName).FirstOrCreate(&category).Error; err != nil {
				return nil, 0, fmt.Errorf("failed to create category %q: %w", categoryName, err)
			}
			categoryID = category.ID
			categoryIDs[categoryName] = categoryID
		}

		var subCategoryID *uint
		if subCategoryName != "" {
			subKey := categoryName + "|" + subCategoryName
			subCategoryID, ok = subCategoryIDs[subKey]
			if !ok {
				subCategory := model.SubCategory{CategoryID: categoryID, Name: subCategoryName}
				err := gdb.Where("category_id = ? AND name = ?", categoryID, subCategoryName).
					FirstOrCreate(&subCategory).Error
				if err != nil {
					return nil, 0, fmt.Errorf("failed to create sub-category %q: %w", subCategoryName, err)
				}
				subCategoryID = &subCategory.ID
				subCategoryIDs[subKey] = subCategoryID
			}
		}

		products = append(products, model.Product{
			Name:          name,
			Description:   description,
			Price:         price,
			StockQuantity: stock,
			CategoryID:    categoryID,
			SubCategoryID: subCategoryID,
			ThumbnailURL:  thumbnailURL,
		})

		if len(products)%500 == 0 {
			fmt.Printf("Processed %d products...\n", len(products))
		}
	}

	return products, skipped, nil
}
