package lift

import (
	"context"

	"github.com/geoknoesis/semlift-go/internal/process"
)

// DefaultJQBinary is the jq executable looked up on PATH.
const DefaultJQBinary = "jq"

// JQ runs jq programs as an external process.
type JQ struct {
	Runner process.Runner
	// Binary is the jq executable; empty uses DefaultJQBinary.
	Binary string
}

// NewJQ returns a JQ running binary through runner.
func NewJQ(runner process.Runner, binary string) *JQ {
	return &JQ{Runner: runner, Binary: binary}
}

// Apply feeds input to program and returns jq's standard output. A non-zero
// exit is a *errors.ProcessError carrying the exit code and stderr.
func (j *JQ) Apply(ctx context.Context, program string, input []byte) ([]byte, error) {
	binary := j.Binary
	if binary == "" {
		binary = DefaultJQBinary
	}
	runner := j.Runner
	if runner == nil {
		runner = &process.Exec{}
	}
	return process.Output(ctx, runner, []string{binary, program}, input)
}
