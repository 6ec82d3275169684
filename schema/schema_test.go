package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/semlift-go/errors"
)

const personSchema = `{
  "type": "object",
  "required": ["id", "age"],
  "properties": {
    "id": {"type": "string"},
    "age": {"type": "integer", "minimum": 0}
  }
}`

func TestValidate(t *testing.T) {
	res, err := Validate([]byte(personSchema), map[string]any{"id": "a", "age": json.Number("3")})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)

	res, err = Validate([]byte(personSchema), map[string]any{"id": "a", "age": json.Number("-1")})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "age")
}

func TestValidateMissingRequired(t *testing.T) {
	res, err := Validate([]byte(personSchema), map[string]any{"id": "a"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)
}

func TestCompileYAML(t *testing.T) {
	s, err := Compile([]byte("type: object\nrequired: [name]\n"))
	require.NoError(t, err)

	res, err := s.Validate(map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = s.Validate(map[string]any{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestCompileRejectsGarbage(t *testing.T) {
	_, err := Compile([]byte("   "))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))

	_, err = Compile([]byte(`{"type": 12}`))
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
