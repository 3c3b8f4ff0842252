/*
Package clients provides a Go client for the vehicle registry HTTP API.

RegistryClient implements interfaces.VehicleRegistry, interfaces.RecordReader
and interfaces.HistoryProvider over HTTP. Failed results are turned back into
*interfaces.RegistryError values, so errors.Is(err, interfaces.ErrNotOwner)
works the same against a remote server as against an in-process ledger.

	client := clients.NewRegistryClient("http://localhost:8080", nil)
	receipt, err := client.Register(ctx, "12D12345", "ALICE")
	history, err := client.History(ctx, "12D12345")
	snapshot, err := client.ExportSnapshot(ctx, "12D12345")
*/
package clients
