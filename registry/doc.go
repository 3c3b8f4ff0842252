// Package registry implements the vehicle registry state machine and a client
// that submits registry operations to a ledger.
//
// Machine is the authoritative set of transition rules:
//
//	Absent --register--> Registered --transfer/addServiceRecord--> Registered
//
// A registration is registered at most once, only its current owner may
// transfer it or add service records, and nothing is ever unregistered. Each
// call either applies fully or leaves the RecordStore untouched. The ledger
// package runs Machine inside its devnet execution environment, and history
// replays decoded events through it to rebuild records.
//
// Client encodes operations with txcodec and hands them to an
// interfaces.Submitter, returning receipts that carry the transaction id,
// round and an explorer link.
//
// # Usage Example
//
//	store := registry.NewMemoryStore()
//	machine := registry.NewMachine(store, log)
//
//	receipt, err := machine.Register(ctx, "12D12345", ownerAddress)
//	if errors.Is(err, interfaces.ErrAlreadyRegistered) {
//	    ...
//	}
//	fmt.Println(receipt.Message)
package registry
