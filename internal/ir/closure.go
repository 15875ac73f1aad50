package ir

// ClosureDefn is a closure definition: a body parameterized over both
// captured (Stored) atoms and ordinary Params. Produced by the lambda
// lifter and consumed by the representation transform / LLVM emitter.
type ClosureDefn struct {
	Name   string
	Stored []*Temp
	Params []*Temp
	Body   Tail
}
