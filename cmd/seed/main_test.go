package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourbook/tours-api/internal/model"
)

type memTours struct {
	inserted []*model.Tour
	failOn   string
}

func (m *memTours) Insert(_ context.Context, t *model.Tour) error {
	if t.Name == m.failOn {
		return errors.New("duplicate")
	}
	m.inserted = append(m.inserted, t)
	return nil
}

func (m *memTours) DeleteAll(context.Context) (int64, error) {
	n := int64(len(m.inserted))
	m.inserted = nil
	return n, nil
}

func TestImportToursFromFixture(t *testing.T) {
	f, err := os.Open("../../dev-data/data/tours.json")
	require.NoError(t, err)
	defer f.Close()

	store := &memTours{}
	n, err := importTours(context.Background(), store, f)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "The Forest Hiker", store.inserted[0].Name)
	assert.Len(t, store.inserted[1].Locations, 3)
	require.NotNil(t, store.inserted[1].PriceDiscount)
	assert.Equal(t, 50.0, *store.inserted[1].PriceDiscount)
	assert.True(t, store.inserted[3].SecretTour)
}

func TestImportToursStopsAtFirstFailure(t *testing.T) {
	store := &memTours{failOn: "The Sea Explorer"}
	in := `[{"name":"The Forest Hiker"},{"name":"The Sea Explorer"},{"name":"The Snow Adventurer"}]`

	n, err := importTours(context.Background(), store, strings.NewReader(in))
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), `tour 1 ("The Sea Explorer")`)
	assert.Len(t, store.inserted, 1)
}

func TestImportToursRejectsEmptyOrMalformedInput(t *testing.T) {
	_, err := importTours(context.Background(), &memTours{}, strings.NewReader(`[]`))
	assert.Error(t, err)

	_, err = importTours(context.Background(), &memTours{}, strings.NewReader(`{`))
	assert.Error(t, err)
}
