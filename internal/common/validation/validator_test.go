package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/common/errors"
)

type payload struct {
	Name     string  `json:"name" validate:"required,max=20"`
	Slug     string  `json:"slug" validate:"omitempty,slug"`
	Price    float64 `json:"price" validate:"gte=0"`
	Rating   int     `json:"rating" validate:"omitempty,min=1,max=5"`
	CacheTyp string  `json:"type" validate:"omitempty,category"`
}

func TestValidateStruct_Valid(t *testing.T) {
	v := New()
	err := v.ValidateStruct(payload{Name: "Desk lamp", Slug: "desk-lamp-2", Price: 19.5, Rating: 4, CacheTyp: "products"})
	assert.NoError(t, err)
	assert.Nil(t, v.Fields(payload{Name: "ok"}))
}

func TestValidateStruct_SingleFailure(t *testing.T) {
	err := New().ValidateStruct(payload{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	assert.Contains(t, err.Error(), "field 'name' is required")
}

func TestValidateStruct_MultipleFailures(t *testing.T) {
	err := New().ValidateStruct(payload{Name: "x", Price: -1, Rating: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed:")
	assert.Contains(t, err.Error(), "field 'price' must be greater than or equal to 0")
	assert.Contains(t, err.Error(), "field 'rating' must be at most 5")
}

func TestCustomTags(t *testing.T) {
	v := New()

	fields := v.Fields(payload{Name: "x", Slug: "Not A Slug", CacheTyp: "orders"})
	require.Len(t, fields, 2)

	byField := map[string]FieldError{}
	for _, f := range fields {
		byField[f.Field] = f
	}
	assert.Equal(t, "slug", byField["slug"].Tag)
	assert.Equal(t, "category", byField["type"].Tag)
	assert.Contains(t, byField["type"].Message, "products, categories, stats, user, search")
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("stats", "category"))
	assert.Error(t, ValidateVar("sessions", "category"))
	assert.Error(t, ValidateVar("", "required"))
	assert.Same(t, Default(), Default())
}
