package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustPolicyEqual_ReorderedKeysAndStatements(t *testing.T) {
	declared := `{
	  "Version": "2012-10-17",
	  "Statement": [
	    {"Effect": "Allow", "Principal": {"Service": "ec2.amazonaws.com"}, "Action": "sts:AssumeRole"},
	    {"Effect": "Allow", "Principal": {"Service": "eks.amazonaws.com"}, "Action": "sts:AssumeRole"}
	  ]
	}`
	// Same document as the API might return it: statements reordered, keys
	// reordered, whitespace collapsed.
	live := `{"Statement":[{"Action":"sts:AssumeRole","Principal":{"Service":"eks.amazonaws.com"},"Effect":"Allow"},{"Action":"sts:AssumeRole","Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"}}],"Version":"2012-10-17"}`

	equal, err := TrustPolicyEqual(declared, live)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestTrustPolicyEqual_SingleStatementObject(t *testing.T) {
	asObject := `{"Version":"2012-10-17","Statement":{"Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"},"Action":"sts:AssumeRole"}}`
	asList := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

	equal, err := TrustPolicyEqual(asObject, asList)
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestTrustPolicyEqual_DifferentPrincipal(t *testing.T) {
	a := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"},"Action":"sts:AssumeRole"}]}`
	b := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":"arn:aws:iam::123456789012:root"},"Action":"sts:AssumeRole"}]}`

	equal, err := TrustPolicyEqual(a, b)
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestTrustPolicyEqual_DifferentVersion(t *testing.T) {
	a := `{"Version":"2012-10-17","Statement":[]}`
	b := `{"Version":"2008-10-17","Statement":[]}`

	equal, err := TrustPolicyEqual(a, b)
	require.NoError(t, err)
	assert.False(t, equal)
}

func TestTrustPolicyEqual_Malformed(t *testing.T) {
	_, err := TrustPolicyEqual("{", `{"Version":"2012-10-17"}`)
	assert.Error(t, err)
}

func TestValuesEqual(t *testing.T) {
	declared := map[string]interface{}{
		"replicas": 2,
		"settings": map[string]interface{}{"clusterName": "prod"},
	}
	// As read back from release storage: numbers become float64.
	deployed := map[string]interface{}{
		"replicas": float64(2),
		"settings": map[string]interface{}{"clusterName": "prod"},
	}
	assert.True(t, ValuesEqual(declared, deployed))
	assert.True(t, ValuesEqual(nil, map[string]interface{}{}))
	assert.False(t, ValuesEqual(declared, map[string]interface{}{"replicas": 3}))
}
