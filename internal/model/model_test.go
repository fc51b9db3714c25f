package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := CursorAfter(&Customer{ID: "ecc770d9-4576-4f72-affa-8b1454246692", CreatedAt: 1710072000000})

	parsed, err := ParseCursor(c.String())
	require.NoError(t, err, "cursor string must be parseable")
	require.Equal(t, c.ID(), parsed.ID())
	require.Equal(t, c.CreatedAt(), parsed.CreatedAt())
}

func TestCursorMalformed(t *testing.T) {
	for _, s := range []string{"", "***", "bm90LW1zZ3BhY2s"} {
		_, err := ParseCursor(s)
		require.True(t, errors.Is(err, ErrMalformedCursor), "cursor %q must be rejected", s)
	}
}

func TestPageJSON(t *testing.T) {
	items := []*Customer{{ID: "b", CreatedAt: 2}, {ID: "a", CreatedAt: 1}}
	page := NewPage(items, 2)

	raw, err := json.Marshal(page)
	require.NoError(t, err, "page must be serializable")

	var decoded Page
	require.NoError(t, json.Unmarshal(raw, &decoded), "page must be deserializable")
	require.NotNil(t, decoded.Next, "cursor must survive json")
	require.Equal(t, "a", decoded.Next.ID())
	require.Equal(t, int64(1), decoded.Next.CreatedAt())
}

func TestNewPage(t *testing.T) {
	items := []*Customer{{ID: "c", CreatedAt: 3}, {ID: "b", CreatedAt: 2}}

	require.NotNil(t, NewPage(items, 2).Next, "full page must have next cursor")
	require.Nil(t, NewPage(items, 3).Next, "partial page must not have next cursor")

	empty := NewPage(nil, 9)
	require.Nil(t, empty.Next, "empty page must not have next cursor")
	require.NotNil(t, empty.Items, "empty page must serialize items as empty list")
}

func TestStatisticsEmpty(t *testing.T) {
	stats := NewStatisticsBuilder(1710072000000).Build()

	require.Zero(t, stats.TotalCount)
	require.Zero(t, stats.NewCount)
	require.Empty(t, stats.CountByCountry)
	require.Empty(t, stats.Countries)
}

func TestStatisticsByCountry(t *testing.T) {
	now := int64(1710072000000)
	day := int64(24 * 60 * 60 * 1000)

	b := NewStatisticsBuilder(now)
	b.Add(now-day, "US")
	b.Add(now-40*day, "US")
	b.Add(now-NewCustomerWindowMillis, "FR")

	stats := b.Build()
	require.Equal(t, 3, stats.TotalCount)
	require.Equal(t, 2, stats.NewCount, "customers within 30 days inclusive must be new")
	require.Equal(t, map[string]int{"US": 2, "FR": 1}, stats.CountByCountry)
	require.Equal(t, []CountryCount{{Name: "US", Value: 2}, {Name: "FR", Value: 1}}, stats.Countries)
}

func TestCustomerFormViolation(t *testing.T) {
	tests := []struct {
		form   CustomerForm
		target string
	}{
		{form: CustomerForm{Name: "John"}, target: ""},
		{form: CustomerForm{Name: "John", Email: "john@mail.com"}, target: ""},
		{form: CustomerForm{Name: ""}, target: "name"},
		{form: CustomerForm{Name: " \t"}, target: "name"},
		{form: CustomerForm{Name: "John", Email: "john"}, target: "email"},
		{form: CustomerForm{Name: "John", Email: "john@mail"}, target: "email"},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case %d", i), func(t *testing.T) {
			target, _ := tt.form.Violation()
			require.Equal(t, tt.target, target)
		})
	}
}

func TestPhotoChange(t *testing.T) {
	var zero PhotoChange
	require.Equal(t, PhotoKeep, zero.Action(), "zero value must keep photo")

	replace := ReplacePhoto([]byte("img"), "me.png")
	require.Equal(t, PhotoReplace, replace.Action())
	require.Equal(t, []byte("img"), replace.Content())
	require.Equal(t, "me.png", replace.Filename())

	require.Equal(t, PhotoClear, ClearPhoto().Action())
}
