package loaders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loaders"
)

func asbestosConfig() loaders.SourceConfig {
	return loaders.SourceConfig{SourceType: "iowa_asbestos", SourceName: "Iowa Asbestos Licenses"}
}

func TestAsbestosLoaderParseSkipsMissingName(t *testing.T) {
	t.Parallel()
	l := loaders.NewAsbestosLoader(asbestosConfig(), &fakeProposeClient{})

	rec, err := l.ParseRecord(map[string]string{"First Name": "", "Last Name": "Smith"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestAsbestosLoaderParseCSVAndValidate(t *testing.T) {
	t.Parallel()
	l := loaders.NewAsbestosLoader(asbestosConfig(), &fakeProposeClient{})

	rec, err := l.ParseRecord(map[string]string{
		"First Name": "Jane", "Last Name": "Doe", "License Type": "Inspector",
		"Registration Number": "R-1", "County": "Polk", "Issue Date": "01/15/2020", "Expire Date": "01/15/2022",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, l.ValidateRecord(rec))
}

func TestAsbestosLoaderParseJSONFormat(t *testing.T) {
	t.Parallel()
	l := loaders.NewAsbestosLoader(asbestosConfig(), &fakeProposeClient{})

	rec, err := l.ParseRecord(map[string]string{
		"first_name": "Jane", "last_name": "Doe", "license_type": "Worker",
		"issue_date": "2020-01-15T00:00:00Z",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestAsbestosLoaderProcessWithCounty(t *testing.T) {
	t.Parallel()
	client := &fakeProposeClient{}
	l := loaders.NewAsbestosLoader(asbestosConfig(), client)

	rec, err := l.ParseRecord(map[string]string{
		"First Name": "Jane", "Last Name": "Doe", "License Type": "Inspector", "County": "Polk",
	})
	require.NoError(t, err)

	results, err := l.ProcessRecord(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, string(domain.NodeCounty), client.calls[1].TargetType)
	assert.Equal(t, "Polk County", client.calls[1].TargetName)
}

func TestAsbestosLoaderProcessWithoutCounty(t *testing.T) {
	t.Parallel()
	client := &fakeProposeClient{}
	l := loaders.NewAsbestosLoader(asbestosConfig(), client)

	rec, err := l.ParseRecord(map[string]string{
		"First Name": "Jane", "Last Name": "Doe", "License Type": "Worker",
	})
	require.NoError(t, err)

	results, err := l.ProcessRecord(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestAsbestosLoaderValidationErrors(t *testing.T) {
	t.Parallel()
	l := loaders.NewAsbestosLoader(asbestosConfig(), &fakeProposeClient{})

	rec, err := l.ParseRecord(map[string]string{
		"First Name": "Jane", "Last Name": "Doe", "License Type": "",
	})
	require.NoError(t, err)
	errs := l.ValidateRecord(rec)
	assert.Contains(t, errs, "missing license type")
}
