package traefik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostnamesFromRuleExtractsSimple(t *testing.T) {
	names := hostnamesFromRule("Host(`app.example.com`)")
	require.Equal(t, []string{"app.example.com"}, names)
}

func TestHostnamesFromRuleExtractsCompoundAnd(t *testing.T) {
	names := hostnamesFromRule("Host(`a.example.com`) && Host(`b.example.com`)")
	require.Equal(t, []string{"a.example.com", "b.example.com"}, names)
}

func TestHostnamesFromRuleSkipsUnsupportedRule(t *testing.T) {
	names := hostnamesFromRule("PathPrefix(`/api`)")
	require.Nil(t, names)
}
