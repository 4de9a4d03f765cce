// Package device implements the in-memory device state store.
//
// Each device owns a writer mutex and an atomically swapped record, so
// upserts for one device are linearizable, upserts for different devices do
// not contend and readers never wait for writers.
package device
