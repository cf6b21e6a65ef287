package service

import (
	"context"

	"parkingcash/internal/dto"
	"parkingcash/internal/repository"
)

// ProductService exposes the sellable catalog to the register.
type ProductService interface {
	ListActive(ctx context.Context) ([]dto.ProductResponse, error)
}

type productService struct{ repo repository.ProductRepository }

func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func (s *productService) ListActive(ctx context.Context) ([]dto.ProductResponse, error) {
	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ProductResponse, len(products))
	for i, p := range products {
		out[i] = dto.ProductResponse{
			ID:          p.ID.String(),
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
		}
	}
	return out, nil
}
