package agent

import (
	"math"
	"strconv"
	"testing"

	"shuttle-market/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestExtractProductDetails(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantName    string
		wantPrice   int64
		wantFound   bool
		wantDesc    string
		wantBrand   string
		wantCat     domain.Category
		wantCond    domain.Condition
		wantStock   int
		wantSpecKey string
	}{
		{
			name:      "comma segments",
			input:     "Yonex Astrox 88D, 15000, brand new",
			wantName:  "Yonex Astrox 88D",
			wantPrice: 15000,
			wantFound: true,
			wantDesc:  "brand new",
			wantBrand: "Yonex",
			wantCat:   domain.CategoryAccessories,
			wantCond:  domain.ConditionNew,
		},
		{
			name:      "price segment after description",
			input:     "Victor shoes, size 43, Rs. 9,500",
			wantName:  "Victor shoes",
			wantPrice: 9500,
			wantFound: true,
			wantDesc:  "size 43",
			wantBrand: "Victor",
			wantCat:   domain.CategoryShoes,
			wantCond:  domain.ConditionNew,
		},
		{
			name:      "thousands suffix segment",
			input:     "Li-Ning bag, 4.5k, used twice",
			wantName:  "Li-Ning bag",
			wantPrice: 4500,
			wantFound: true,
			wantDesc:  "used twice",
			wantBrand: "Li-Ning",
			wantCat:   domain.CategoryBags,
			wantCond:  domain.ConditionUsed,
		},
		{
			name:      "price inside the name segment",
			input:     "Yonex grip Rs 500, pack of 3",
			wantName:  "Yonex grip",
			wantPrice: 500,
			wantFound: true,
			wantDesc:  "pack of 3",
			wantBrand: "Yonex",
			wantCat:   domain.CategoryAccessories,
			wantCond:  domain.ConditionNew,
		},
		{
			name:      "freeform with currency",
			input:     "selling Yonex Nanoflare 700 racket price 18000 lightly used",
			wantName:  "Yonex Nanoflare 700 racket",
			wantPrice: 18000,
			wantFound: true,
			wantDesc:  "lightly used",
			wantBrand: "Yonex",
			wantCat:   domain.CategoryRackets,
			wantCond:  domain.ConditionUsed,
		},
		{
			name:      "freeform bare number",
			input:     "Mavis 350 shuttles",
			wantName:  "Mavis shuttles",
			wantPrice: 350,
			wantFound: true,
			wantCat:   domain.CategoryShuttles,
			wantCond:  domain.ConditionNew,
		},
		{
			name:        "stock and weight",
			input:       "Victor Thruster racket, 22000, 3U, stock: 4",
			wantName:    "Victor Thruster racket",
			wantPrice:   22000,
			wantFound:   true,
			wantDesc:    "3U, stock: 4",
			wantBrand:   "Victor",
			wantCat:     domain.CategoryRackets,
			wantCond:    domain.ConditionNew,
			wantStock:   4,
			wantSpecKey: "weight",
		},
		{
			name:      "only a price",
			input:     "15000",
			wantPrice: 15000,
			wantFound: true,
			wantCat:   domain.CategoryAccessories,
			wantCond:  domain.ConditionNew,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractProductDetails(tt.input)
			if got.Name != tt.wantName {
				t.Errorf("name = %q, want %q", got.Name, tt.wantName)
			}
			if got.Price != tt.wantPrice || got.PriceFound != tt.wantFound {
				t.Errorf("price = %d (%v), want %d (%v)", got.Price, got.PriceFound, tt.wantPrice, tt.wantFound)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("description = %q, want %q", got.Description, tt.wantDesc)
			}
			if got.Brand != tt.wantBrand {
				t.Errorf("brand = %q, want %q", got.Brand, tt.wantBrand)
			}
			if got.Category != tt.wantCat || got.Condition != tt.wantCond {
				t.Errorf("category/condition = %s/%s, want %s/%s", got.Category, got.Condition, tt.wantCat, tt.wantCond)
			}
			if tt.wantStock > 0 && (got.Stock == nil || *got.Stock != tt.wantStock) {
				t.Errorf("stock = %v, want %d", got.Stock, tt.wantStock)
			}
			if tt.wantSpecKey != "" && got.Specs[tt.wantSpecKey] == "" {
				t.Errorf("missing spec %s in %v", tt.wantSpecKey, got.Specs)
			}
		})
	}
}

func TestLooksLikeProductDescription(t *testing.T) {
	for _, text := range []string{"add new racket", "Yonex 88D 15000", "price 500", "selling my old shoes"} {
		if !LooksLikeProductDescription(text) {
			t.Errorf("expected %q to look like a product", text)
		}
	}
	for _, text := range []string{"good morning", "how are you", "thanks", "ok"} {
		if LooksLikeProductDescription(text) {
			t.Errorf("expected %q not to look like a product", text)
		}
	}
}

func TestCoercion(t *testing.T) {
	prices := map[string]int64{"15000": 15000, "Rs. 4,500": 4500, "12k": 12000, "1.5k": 1500, "PKR 800/-": 800}
	for in, want := range prices {
		got, err := CoercePrice(in)
		if err != nil || got != want {
			t.Errorf("CoercePrice(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	for _, in := range []string{"", "abc", "free"} {
		if _, err := CoercePrice(in); err == nil {
			t.Errorf("CoercePrice(%q) should fail", in)
		}
	}

	if n, err := CoerceStock(" 7 "); err != nil || n != 7 {
		t.Errorf("CoerceStock = %d, %v", n, err)
	}
	if n, err := CoerceStock("2147483647"); err != nil || n != math.MaxInt32 {
		t.Errorf("CoerceStock at the column limit = %d, %v", n, err)
	}
	for _, in := range []string{"-1", "two", "1.5", "2147483648", "99999999999999999999"} {
		if _, err := CoerceStock(in); err == nil {
			t.Errorf("CoerceStock(%q) should fail", in)
		}
	}

	if name, err := CoerceName("  Astrox   88D "); err != nil || name != "Astrox 88D" {
		t.Errorf("CoerceName = %q, %v", name, err)
	}
	if _, err := CoerceName("   "); err == nil {
		t.Error("blank name should fail")
	}
}

// Any non-negative integer survives the price coercion unchanged
func TestProperty_CoercePriceRoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("digits parse back to the same price", prop.ForAll(
		func(price int64) bool {
			got, err := CoercePrice(strconv.FormatInt(price, 10))
			return err == nil && got == price
		},
		gen.Int64Range(0, 10_000_000),
	))

	properties.Property("extraction never proposes a negative price", prop.ForAll(
		func(text string) bool {
			return ExtractProductDetails(text).Price >= 0
		},
		gen.AnyString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
