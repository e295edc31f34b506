// Package auction defines the core types shared by the discovery, collection,
// and persistence stages of a daily carsnbids run.
package auction
