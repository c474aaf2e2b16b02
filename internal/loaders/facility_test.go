package loaders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loaders"
)

func facilityConfig() loaders.SourceConfig {
	return loaders.SourceConfig{SourceType: "medical_facility", SourceName: "Medical Facility Registry"}
}

func TestFacilityLoaderParseSkipsMissingName(t *testing.T) {
	t.Parallel()
	l := loaders.NewFacilityLoader(facilityConfig(), &fakeProposeClient{}, "Iowa")

	rec, err := l.ParseRecord(map[string]string{"Facility Name": ""})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFacilityLoaderParseAndProcess(t *testing.T) {
	t.Parallel()
	client := &fakeProposeClient{}
	l := loaders.NewFacilityLoader(facilityConfig(), client, "Iowa")

	rec, err := l.ParseRecord(map[string]string{
		"Facility Name": "Mercy Medical Center", "Facility Type": "Hospital",
		"Address 1": "123 Main St", "City": "Des Moines", "Zip": "50309", "Phone": "515-555-0100",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, l.ValidateRecord(rec))

	results, err := l.ProcessRecord(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, string(domain.NodeMedicalFacility), client.calls[0].SourceType)
	assert.Equal(t, string(domain.NodeState), client.calls[0].TargetType)
	assert.Equal(t, "Iowa", client.calls[0].TargetName)
	assert.Equal(t, "Hospital", client.calls[0].SourceAttributes["facility_type"])
}

func TestFacilityLoaderSourceIdentity(t *testing.T) {
	t.Parallel()
	l := loaders.NewFacilityLoader(facilityConfig(), &fakeProposeClient{}, "Iowa")
	assert.Equal(t, "medical_facility", l.SourceType())
	assert.Equal(t, "Medical Facility Registry", l.SourceName())
}
