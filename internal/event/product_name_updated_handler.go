package event

import (
	"context"
	"errors"
	"log/slog"
)

// ProductNameUpdatedEvent is published after a product update that changed the product's name.
// Field names are part of the wire contract.
type ProductNameUpdatedEvent struct {
	ProductID string `json:"ProductID"`
	NewName   string `json:"NewName"`
}

func (ev ProductNameUpdatedEvent) validate() error {
	if ev.ProductID == "" {
		return errors.New("missing product id")
	}
	return nil
}

func (s *Service) handleProductNameUpdatedEvent(ctx context.Context, ev ProductNameUpdatedEvent) error {
	s.logger.InfoContext(ctx, "product renamed",
		slog.String("product_id", ev.ProductID),
		slog.String("new_name", ev.NewName),
	)
	return nil
}
