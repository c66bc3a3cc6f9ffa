package generator

import (
	"math"
	"sort"
	"strings"

	"bf16lut/pkg/common"
)

// TargetFunc is a real function the table approximates.
type TargetFunc struct {
	Name string
	Eval func(x float64) float64
}

var targets = map[string]TargetFunc{
	"exp2": {Name: "exp2", Eval: math.Exp2},
	"exp":  {Name: "exp", Eval: math.Exp},
	"log2": {Name: "log2", Eval: math.Log2},
}

// DefaultFunction is used when no function is named.
const DefaultFunction = "exp2"

// Lookup resolves a registered target function by name. An empty name
// selects DefaultFunction.
func Lookup(name string) (TargetFunc, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultFunction
	}
	tf, ok := targets[name]
	if !ok {
		return TargetFunc{}, common.ErrUnknownFunction.WithValue("function", name).WithValue("known", Functions())
	}
	return tf, nil
}

// Functions lists the registered names in order.
func Functions() []string {
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
