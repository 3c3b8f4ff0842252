// Package main (cmd/httpserver) runs the vehicle registry HTTP API.
//
// The server submits registry operations to a ledger and reconstructs vehicle
// histories from its application transactions. Two ledger backends are
// supported:
//
//   - devnet: an in-process single-writer ledger, optionally persisted in a
//     SQLite file (--devnet-db). Suitable for development and demos.
//
//   - algorand: submits signed application calls through algod and reads
//     history from an indexer. The signing account comes from
//     --signer-mnemonic or from a Vault KV v2 secret (--vault-addr).
//
// History snapshots can be archived to content-addressed storage
// (--snapshot-storage file://..., s3://..., ipfs://...) and static vehicle
// data can be attached to record reads (--vehicle-api).
//
// Every flag also reads an environment variable prefixed VEHICLE_REGISTRY_.
//
// Example usage:
//
//	httpserver --ledger devnet --devnet-db ./devnet.sqlite \
//	  --snapshot-storage file://./snapshots --log-debug
//
//	httpserver --ledger algorand --app-id 123456 \
//	  --algod-addr https://testnet-api.algonode.cloud \
//	  --indexer-addr https://testnet-idx.algonode.cloud \
//	  --vault-addr https://vault.example.com --vault-token $TOKEN
//
// The server shuts down gracefully on SIGINT/SIGTERM and exposes /livez,
// /readyz, /drain, /undrain, Prometheus metrics on --metrics-addr and
// optionally pprof (--pprof).
package main
