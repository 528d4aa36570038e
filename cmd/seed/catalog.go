package main

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/DeliveryGo/internal/domain"
)

// catalogNamespace scopes the name-based IDs so re-runs produce the same rows.
var catalogNamespace = uuid.MustParse("6f1c1f5e-2d0b-4a53-9a52-4c1f0e7f3b10")

type menuSection struct {
	Category string
	Dishes   []string
	MinPrice int64
	MaxPrice int64
}

var menu = []menuSection{
	{"pizza", []string{"Margherita", "Pepperoni", "Quattro Formaggi", "Diavola", "Hawaiian", "Capricciosa"}, 650, 1400},
	{"burgers", []string{"Classic Burger", "Cheeseburger", "Bacon Burger", "Chicken Burger", "Veggie Burger"}, 450, 950},
	{"sushi", []string{"Philadelphia Roll", "California Roll", "Salmon Nigiri", "Tuna Maki", "Dragon Roll"}, 390, 1200},
	{"salads", []string{"Caesar Salad", "Greek Salad", "Nicoise Salad", "Caprese"}, 350, 700},
	{"soups", []string{"Borscht", "Tom Yum", "Minestrone", "Miso Soup"}, 300, 650},
	{"desserts", []string{"Cheesecake", "Tiramisu", "Brownie", "Panna Cotta"}, 250, 550},
	{"drinks", []string{"Lemonade", "Cola", "Mors", "Iced Tea", "Mineral Water"}, 90, 300},
}

var portions = []string{"Small", "Regular", "Large", "Family"}

// generateCatalog builds count products. The same count always yields the same
// products, IDs included.
func generateCatalog(count int, now time.Time) []domain.Product {
	rng := rand.New(rand.NewSource(42))
	products := make([]domain.Product, 0, count)

	for i := 0; i < count; i++ {
		section := menu[i%len(menu)]
		dish := section.Dishes[(i/len(menu))%len(section.Dishes)]
		portion := portions[(i/(len(menu)*len(section.Dishes)))%len(portions)]
		name := fmt.Sprintf("%s %s", portion, dish)
		if round := i / (len(menu) * len(section.Dishes) * len(portions)); round > 0 {
			name = fmt.Sprintf("%s #%d", name, round+1)
		}

		price := section.MinPrice + rng.Int63n(section.MaxPrice-section.MinPrice+1)
		products = append(products, domain.Product{
			ID:            uuid.NewSHA1(catalogNamespace, []byte(fmt.Sprintf("product:%d", i))).String(),
			Name:          name,
			Description:   fmt.Sprintf("%s from the %s menu.", dish, section.Category),
			Price:         price,
			Category:      section.Category,
			IsAvailable:   rng.Intn(10) > 0,
			StockQuantity: rng.Intn(200),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return products
}
