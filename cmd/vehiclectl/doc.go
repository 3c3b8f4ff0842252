// Package main (cmd/vehiclectl) is the command line client of the vehicle
// registry.
//
// It talks either to a running registry server (--server) or directly to a
// ledger using the same ledger flags as the server (--ledger devnet with
// --devnet-db, or --ledger algorand). Every command prints the JSON result
// envelope and exits non-zero on failure.
//
// Example usage:
//
//	vehiclectl --server http://127.0.0.1:8080 --caller ALICE register 12D12345
//	vehiclectl --server http://127.0.0.1:8080 --caller ALICE transfer 12D12345 BOB
//	vehiclectl --server http://127.0.0.1:8080 --caller BOB service 12D12345 oil-change
//	vehiclectl --server http://127.0.0.1:8080 history --export file://./snapshots 12D12345
//	vehiclectl --devnet-db ./devnet.sqlite history --follow 12D12345
package main
