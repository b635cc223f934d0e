package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tobeyfinance/backoffice/internal/models"
	"github.com/tobeyfinance/backoffice/internal/store"
)

// Collection is the store collection customers persist into.
const Collection = "customers"

// Directory answers owner existence checks for account creation and lets
// the surrounding layers register customers.
type Directory struct {
	store *store.Store
}

func NewDirectory(st *store.Store) *Directory {
	return &Directory{store: st}
}

// Exists reports whether a customer id is known.
func (d *Directory) Exists(ctx context.Context, ownerID string) (bool, error) {
	return d.store.Get(ctx, Collection, "customer_id", ownerID, nil)
}

// Register persists a new customer with a generated id.
func (d *Directory) Register(ctx context.Context, name, email string) (*models.Customer, error) {
	if name == "" {
		return nil, fmt.Errorf("customer name is required")
	}
	customer := &models.Customer{
		SchemaVersion: models.SchemaVersion,
		CustomerID:    uuid.New().String(),
		Name:          name,
		Email:         email,
		CreatedAt:     time.Now().UTC(),
	}
	if err := d.store.Upsert(ctx, Collection, "customer_id", customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// Customer is a point lookup; it returns (nil, nil) on a miss.
func (d *Directory) Customer(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer
	found, err := d.store.Get(ctx, Collection, "customer_id", customerID, &customer)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &customer, nil
}
