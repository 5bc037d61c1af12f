package model

import "time"

// StoreStatus is the lifecycle state reported by the POS for a store.
type StoreStatus string

const (
	StoreActive   StoreStatus = "active"
	StoreInactive StoreStatus = "inactive"
	StoreTest     StoreStatus = "test"
)

// Store is a retail store mirrored from the POS, keyed by its upstream id.
type Store struct {
	ID          string      `json:"id" db:"id"`
	City        string      `json:"city" db:"city"`
	Code        string      `json:"code" db:"code"`
	Email       string      `json:"email" db:"email"`
	Name        string      `json:"name" db:"name"`
	PhoneNumber string      `json:"phone_number" db:"phone_number"`
	PostalCode  string      `json:"postal_code" db:"postal_code"`
	Status      StoreStatus `json:"status" db:"status"`
	Street      string      `json:"street" db:"street"`
	SyncedAt    time.Time   `json:"synced_at" db:"synced_at"`
}

// IsTest reports whether the store is a POS test store, which is never mirrored.
func (s Store) IsTest() bool {
	return s.Status == StoreTest
}
