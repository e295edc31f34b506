// Package storage holds the object storage sinks a batch can be written to.
// Each backend lives in its own subpackage and implements auction.Sink with a
// single atomic put per object.
package storage
