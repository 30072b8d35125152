// Package catalog provides run catalog implementations: the durable
// ownership index, listing summaries, and the append-only event ledger.
//
// Implementations:
//   - postgres: gorm with JSON columns, survives run-store expiry
//   - memory: In-memory for single-process deployments and testing
package catalog
