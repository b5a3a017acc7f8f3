package domain

import "strings"

// Operator is the closed set of comparisons a Condition may use.
type Operator string

const (
	OpGE Operator = ">="
	OpGT Operator = ">"
	OpLE Operator = "<="
	OpLT Operator = "<"
	OpEQ Operator = "=="
	OpNE Operator = "!="
)

// Operators lists the supported operators in a stable order.
var Operators = []Operator{OpGE, OpGT, OpLE, OpLT, OpEQ, OpNE}

// ParseOperator converts a wire string into an Operator.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.TrimSpace(s))
	if !op.Valid() {
		return "", &UnsupportedOperatorError{Operator: s}
	}
	return op, nil
}

// Valid reports whether op is one of the supported operators.
func (op Operator) Valid() bool {
	switch op {
	case OpGE, OpGT, OpLE, OpLT, OpEQ, OpNE:
		return true
	}
	return false
}

// Ordering reports whether op needs an ordering between its operands.
func (op Operator) Ordering() bool {
	return op == OpGE || op == OpGT || op == OpLE || op == OpLT
}

func (op Operator) String() string {
	return string(op)
}
