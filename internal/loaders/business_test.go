package loaders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexara-six/ingestion/internal/domain"
	"github.com/lexara-six/ingestion/internal/loaders"
)

func businessConfig() loaders.SourceConfig {
	return loaders.SourceConfig{SourceType: "iowa_business", SourceName: "Iowa Business Entities"}
}

func TestBusinessLoaderParseSkipsMissingRequired(t *testing.T) {
	t.Parallel()
	l := loaders.NewBusinessLoader(businessConfig(), &fakeProposeClient{}, nil)

	rec, err := l.ParseRecord(map[string]string{"Legal Name": "", "Corporation Type": "LLC"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestBusinessLoaderParseAndValidate(t *testing.T) {
	t.Parallel()
	l := loaders.NewBusinessLoader(businessConfig(), &fakeProposeClient{}, nil)

	rec, err := l.ParseRecord(map[string]string{
		"Corp Number": "123", "Legal Name": "Acme LLC", "Corporation Type": "LLC",
		"Effective Date": "2020-01-01", "HO City": "Des Moines", "HO State": "IA", "HO Zip": "50309",
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, l.ValidateRecord(rec))
}

func TestBusinessLoaderProcessCompanyWithCity(t *testing.T) {
	t.Parallel()
	client := &fakeProposeClient{}
	l := loaders.NewBusinessLoader(businessConfig(), client, nil)

	rec, err := l.ParseRecord(map[string]string{
		"Corp Number": "123", "Legal Name": "Acme LLC", "Corporation Type": "LLC",
		"HO City": "Des Moines", "HO State": "IA", "Registered Agent": "Jane Doe",
	})
	require.NoError(t, err)

	results, err := l.ProcessRecord(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, client.calls, 2)

	assert.Equal(t, string(domain.NodeCity), client.calls[0].TargetType)
	assert.Equal(t, string(domain.NodePerson), client.calls[1].SourceType)
}

func TestBusinessLoaderProcessCompanyWithoutCityFallsBackToState(t *testing.T) {
	t.Parallel()
	client := &fakeProposeClient{}
	l := loaders.NewBusinessLoader(businessConfig(), client, nil)

	rec, err := l.ParseRecord(map[string]string{
		"Corp Number": "1", "Legal Name": "NoCity Inc", "Corporation Type": "Corp",
	})
	require.NoError(t, err)

	results, err := l.ProcessRecord(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, string(domain.NodeState), client.calls[0].TargetType)
}

func TestBusinessLoaderAgentClassifiedAsCompanyBySuffix(t *testing.T) {
	t.Parallel()
	client := &fakeProposeClient{}
	l := loaders.NewBusinessLoader(businessConfig(), client, nil)

	rec, err := l.ParseRecord(map[string]string{
		"Legal Name": "Acme", "Corporation Type": "LLC", "Registered Agent": "CT Corporation System",
	})
	require.NoError(t, err)

	_, err = l.ProcessRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, string(domain.NodeCompany), client.calls[len(client.calls)-1].SourceType)
}

func TestBusinessLoaderSourceIdentity(t *testing.T) {
	t.Parallel()
	l := loaders.NewBusinessLoader(businessConfig(), &fakeProposeClient{}, nil)
	assert.Equal(t, "iowa_business", l.SourceType())
	assert.Equal(t, "Iowa Business Entities", l.SourceName())
}
