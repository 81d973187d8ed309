package wasm

// GlobalType is the declared type of a global variable. Mutability is parsed
// and retained for diagnostics; it is not enforced at runtime.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}
