package checker

import "math"

// Overflow-checked arithmetic on the value scalar. Mirrors the helpers the
// emitted checker uses, so a model overflows identically under both back
// ends.

func add(a, b int64) (int64, error) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, failf(Overflow, "integer overflow in addition")
	}
	return r, nil
}

func sub(a, b int64) (int64, error) {
	r := a - b
	if (b < 0 && r < a) || (b > 0 && r > a) {
		return 0, failf(Overflow, "integer overflow in subtraction")
	}
	return r, nil
}

func mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/b != a || (a == math.MinInt64 && b == -1) {
		return 0, failf(Overflow, "integer overflow in multiplication")
	}
	return r, nil
}

func divide(a, b int64) (int64, error) {
	if b == 0 {
		return 0, fail(DivisionByZero)
	}
	if a == math.MinInt64 && b == -1 {
		return 0, failf(Overflow, "integer overflow in division")
	}
	return a / b, nil
}

func mod(a, b int64) (int64, error) {
	if b == 0 {
		return 0, failf(DivisionByZero, "modulus by zero")
	}
	if a == math.MinInt64 && b == -1 {
		return 0, failf(Overflow, "integer overflow in modulo")
	}
	return a % b, nil
}

func negate(a int64) (int64, error) {
	if a == math.MinInt64 {
		return 0, failf(Overflow, "integer overflow in negation")
	}
	return -a, nil
}
