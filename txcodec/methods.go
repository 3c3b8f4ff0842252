package txcodec

import (
	"encoding/hex"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/abi"
	"github.com/ruteri/vehicle-registry/interfaces"
)

// SelectorSize is the length of an ARC-4 method selector.
const SelectorSize = 4

// Selector identifies a method in application call arguments.
type Selector [SelectorSize]byte

// String returns the selector as lowercase hex.
func (s Selector) String() string {
	return hex.EncodeToString(s[:])
}

// Method describes one registry program method.
type Method struct {
	Name      string
	Signature string
	Kind      interfaces.OpKind
	Selector  Selector
	NumArgs   int
}

var methodSignatures = []struct {
	signature string
	kind      interfaces.OpKind
}{
	{"registerVehicle(string)string", interfaces.OpRegister},
	{"transferOwnership(string,string)string", interfaces.OpTransfer},
	{"addServiceRecord(string,string)string", interfaces.OpAddService},
	{"getInfo()string", interfaces.OpGetInfo},
}

var (
	methods    []Method
	byKind     = map[interfaces.OpKind]Method{}
	bySelector = map[Selector]Method{}

	stringType abi.Type
)

func init() {
	var err error
	stringType, err = abi.TypeOf("string")
	if err != nil {
		panic(fmt.Sprintf("txcodec: string type: %v", err))
	}

	for _, entry := range methodSignatures {
		m, err := abi.MethodFromSignature(entry.signature)
		if err != nil {
			panic(fmt.Sprintf("txcodec: method %s: %v", entry.signature, err))
		}
		var sel Selector
		copy(sel[:], m.GetSelector())

		method := Method{
			Name:      m.Name,
			Signature: entry.signature,
			Kind:      entry.kind,
			Selector:  sel,
			NumArgs:   len(m.Args),
		}
		methods = append(methods, method)
		byKind[entry.kind] = method
		bySelector[sel] = method
	}
}

// Methods returns the method table in declaration order.
func Methods() []Method {
	out := make([]Method, len(methods))
	copy(out, methods)
	return out
}

// MethodFor returns the method implementing kind.
func MethodFor(kind interfaces.OpKind) (Method, bool) {
	m, ok := byKind[kind]
	return m, ok
}

// MethodBySelector resolves a selector to its method.
func MethodBySelector(sel Selector) (Method, bool) {
	m, ok := bySelector[sel]
	return m, ok
}
