package main

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// Seeds a demo price catalog so the preview and apply endpoints have
// something to work with on a fresh database. Safe to run repeatedly.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	orgID := os.Getenv("SEED_ORG_ID")
	if orgID == "" {
		log.Fatal("SEED_ORG_ID is not set")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	seedPriceItems(db, orgID)
	log.Println("Seeding completed successfully!")
}

func seedPriceItems(db *sql.DB, orgID string) {
	items := []struct {
		Name      string
		Type      string
		Price     string
		Currency  string
		Specialty string
	}{
		{"General consultation", "service", "150000", "local", ""},
		{"Follow-up consultation", "service", "100000", "local", ""},
		{"Scaling and polishing", "service", "350000", "local", ""},
		{"Tooth extraction, simple", "service", "250000", "local", ""},
		{"Composite filling", "service", "400000", "local", ""},
		{"Root canal, single visit", "service", "1200000", "local", "endodontics"},
		{"Braces adjustment", "service", "300000", "local", "orthodontics"},
		{"Panoramic X-ray", "service", "200000", "local", "radiology"},
		{"Fluoride varnish", "product", "75000", "local", ""},
		{"Toothbrush kit", "product", "45000", "local", ""},
		{"Whitening gel", "product", "250000", "local", ""},
		{"Implant fixture", "product", "900", "foreign", "implantology"},
		{"Zirconia crown blank", "product", "120", "foreign", "prosthodontics"},
	}

	log.Println("Seeding price items...")
	for _, it := range items {
		_, err := db.Exec(`
			INSERT INTO price_items (org_id, name, item_type, price, currency, specialty, active)
			VALUES ($1, $2, $3, $4::numeric, $5, $6, true)
			ON CONFLICT DO NOTHING;
		`, orgID, it.Name, it.Type, it.Price, it.Currency, it.Specialty)
		if err != nil {
			log.Printf("Failed to seed item %s: %v", it.Name, err)
		}
	}
}
