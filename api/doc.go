/*
Package api defines the wire types of the vehicle registry HTTP API.

Every endpoint answers with the result envelope interfaces.Result:

	{"ok": true, "data": {...}, "message": "..."}
	{"ok": false, "error": {"kind": "NotOwner", "message": "...", "registration": "...", "operation": "transfer"}}

Request bodies are RegisterRequest, TransferRequest and ServiceRequest.
Subpackage clients implements a Go client for the API that satisfies
interfaces.VehicleRegistry, interfaces.RecordReader and
interfaces.HistoryProvider, so the CLI can drive a remote server exactly like
an in-process ledger.
*/
package api
