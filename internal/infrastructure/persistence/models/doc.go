// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
// - blob.go: named JSON blobs (mapping records, category memory)
// - shopping.go: internal lists and their line items
package models
