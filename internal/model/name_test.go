package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFullName(t *testing.T) {
	assert.Equal(t, "Gregory House", (&Staff{FirstName: "Gregory", LastName: "House"}).FullName())
	assert.Equal(t, "Jane", (&Patient{FirstName: "Jane"}).FullName())
	assert.Equal(t, "", (&Patient{}).FullName())
}
