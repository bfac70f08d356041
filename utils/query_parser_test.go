package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	apperrors "coaching-module/errors"

	"github.com/stretchr/testify/require"
)

func TestParseTimeFilters(t *testing.T) {
	t.Run("no params", func(t *testing.T) {
		f, err := ParseTimeFilters(httptest.NewRequest("GET", "/payments", nil))
		require.NoError(t, err)
		require.Nil(t, f.CreatedAfter)
		require.Nil(t, f.CreatedBefore)
	})

	t.Run("both bounds", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/payments?created_after=2026-01-01T00:00:00Z&created_before=2026-02-01T00:00:00Z", nil)
		f, err := ParseTimeFilters(r)
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *f.CreatedAfter)
		require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *f.CreatedBefore)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/payments?created_after=01-15-2026", nil)
		_, err := ParseTimeFilters(r)
		require.Error(t, err)
		require.True(t, apperrors.IsKind(err, apperrors.Invalid))
	})
}
