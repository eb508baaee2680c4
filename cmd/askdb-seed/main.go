// askdb-seed creates and populates a small e-commerce test database so the
// interactive agent has something to answer questions about.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/askdblabs/askdb/internal/db"
	"github.com/askdblabs/askdb/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var schema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		username VARCHAR NOT NULL,
		email VARCHAR NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE categories (
		id INTEGER PRIMARY KEY,
		name VARCHAR NOT NULL,
		description VARCHAR
	)`,
	`CREATE TABLE products (
		id INTEGER PRIMARY KEY,
		name VARCHAR NOT NULL,
		description VARCHAR,
		price DECIMAL(10, 2) NOT NULL,
		category_id INTEGER
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		order_date TIMESTAMP NOT NULL,
		total_amount DECIMAL(10, 2)
	)`,
	`CREATE TABLE order_items (
		id INTEGER PRIMARY KEY,
		order_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price DECIMAL(10, 2) NOT NULL
	)`,
}

type seedUser struct {
	username, email string
}

type seedCategory struct {
	name, description string
}

type seedProduct struct {
	name, description string
	price             float64
	categoryID        int
}

var (
	users = []seedUser{
		{"alice_smith", "alice@example.com"},
		{"bob_jones", "bob@example.com"},
		{"charlie_brown", "charlie@example.com"},
		{"diana_wilson", "diana@example.com"},
		{"eve_davis", "eve@example.com"},
	}

	categories = []seedCategory{
		{"Electronics", "Electronic devices and gadgets"},
		{"Clothing", "Fashion and apparel"},
		{"Books", "Books and literature"},
		{"Home & Garden", "Home improvement and gardening"},
	}

	products = []seedProduct{
		{"Laptop", "High-performance laptop", 899.99, 1},
		{"Smartphone", "Latest smartphone model", 699.99, 1},
		{"T-shirt", "Cotton t-shirt", 19.99, 2},
		{"Jeans", "Denim jeans", 49.99, 2},
		{"Python Programming", "Learn Python programming", 29.99, 3},
		{"Data Science Book", "Introduction to data science", 39.99, 3},
		{"Garden Hose", "50ft garden hose", 24.99, 4},
		{"Plant Pot", "Ceramic plant pot", 12.99, 4},
	}
)

func run() error {
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	dbURLFlag := flag.String("db", os.Getenv("DATABASE_URL"), "database URL (or set DATABASE_URL env var)")
	orderCountFlag := flag.Int("orders", 10, "number of random orders to create")
	seedFlag := flag.Int64("seed", time.Now().UnixNano(), "random seed for order generation")
	flag.Parse()

	log := logger.New(*verboseFlag)

	if *dbURLFlag == "" {
		return fmt.Errorf("database URL is required (pass -db or set DATABASE_URL)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := db.Open(*dbURLFlag)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	if err := conn.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established", "dialect", conn.Dialect.Name())

	for _, ddl := range schema {
		if _, err := conn.DB.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	for i, u := range users {
		_, err := conn.DB.ExecContext(ctx,
			`INSERT INTO users (id, username, email) VALUES ($1, $2, $3)`,
			i+1, u.username, u.email)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
	}

	for i, c := range categories {
		_, err := conn.DB.ExecContext(ctx,
			`INSERT INTO categories (id, name, description) VALUES ($1, $2, $3)`,
			i+1, c.name, c.description)
		if err != nil {
			return fmt.Errorf("failed to insert category: %w", err)
		}
	}

	for i, p := range products {
		_, err := conn.DB.ExecContext(ctx,
			`INSERT INTO products (id, name, description, price, category_id) VALUES ($1, $2, $3, $4, $5)`,
			i+1, p.name, p.description, p.price, p.categoryID)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
	}

	rng := rand.New(rand.NewSource(*seedFlag))
	itemID := 0
	for orderID := 1; orderID <= *orderCountFlag; orderID++ {
		userID := rng.Intn(len(users)) + 1
		orderDate := time.Now().AddDate(0, 0, -rng.Intn(31))

		numItems := rng.Intn(4) + 1
		var totalAmount float64
		type pendingItem struct {
			productID, quantity int
			unitPrice           float64
		}
		items := make([]pendingItem, 0, numItems)
		for range numItems {
			productID := rng.Intn(len(products)) + 1
			quantity := rng.Intn(3) + 1
			unitPrice := products[productID-1].price
			items = append(items, pendingItem{productID, quantity, unitPrice})
			totalAmount += unitPrice * float64(quantity)
		}

		_, err := conn.DB.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, order_date, total_amount) VALUES ($1, $2, $3, $4)`,
			orderID, userID, orderDate, totalAmount)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for _, item := range items {
			itemID++
			_, err := conn.DB.ExecContext(ctx,
				`INSERT INTO order_items (id, order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)`,
				itemID, item.productID, item.quantity, item.unitPrice)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
	}

	fmt.Println("Data populated successfully!")
	fmt.Printf("Your DATABASE_URL is: %s\n", *dbURLFlag)
	fmt.Println("You can now run askdb to ask questions about this database.")
	return nil
}
