// Package txcodec maps registry operations to and from ledger application
// call arguments.
//
// A call is encoded as a 4-byte ARC-4 method selector followed by one ARC-4
// string argument per method parameter. The selector is the first four bytes
// of the SHA-512/256 hash of the method signature:
//
//	registerVehicle(string)string           11e029fd
//	transferOwnership(string,string)string  d04eb51b
//	addServiceRecord(string,string)string   c2c55cfb
//	getInfo()string                         3d0802a3
//
// Encode and Decode share one method table. Decode is total: any byte input
// yields an Operation, with undecodable input reported as an OpUnknown
// operation whose Reason describes the failure.
package txcodec
