package dto

import "github.com/shopspring/decimal"

type ProductResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

type ProductSaleResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	ProductName string              `json:"product_name"`
	Quantity    int                 `json:"quantity"`
	UnitPrice   decimal.Decimal     `json:"unit_price"`
}
