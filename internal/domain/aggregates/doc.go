// Package aggregates classifies write failures at aggregate boundaries
// independently of the storage driver.
package aggregates
