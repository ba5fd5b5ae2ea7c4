package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/pkg/errors"
)

func TestParseLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/runs/r/epochs?limit=7&offset=x&page=-2", nil)

	n, err := parseLimit(req, "limit", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = parseLimit(req, "missing", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, key := range []string{"offset", "page"} {
		_, err = parseLimit(req, key, 0)
		assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest), key)
		assert.Equal(t, http.StatusBadRequest, errors.HTTPStatusForCode(errors.GetCode(err)), key)
	}
}

//Personal.AI order the ending
