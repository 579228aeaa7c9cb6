// Package aggregates owns transaction boundaries for writes that must land
// together, such as a thread with its first turn or a payment with its
// ledger credit.
package aggregates
