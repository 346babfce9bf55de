package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

func TestCategoryValidate(t *testing.T) {
	for _, c := range model.Categories {
		assert.NoError(t, c.Validate(), c)
	}

	assert.Error(t, model.Category("").Validate())
	assert.Error(t, model.Category("electronics").Validate())
	assert.Error(t, model.Category("Toys").Validate())
}
