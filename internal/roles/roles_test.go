package roles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogTiers(t *testing.T) {
	tests := []struct {
		role    Role
		level   int
		ttl     time.Duration
		refresh time.Duration
		stepUp  bool
		device  bool
	}{
		{DiamondSAO, 1, 3300 * time.Second, 3000 * time.Second, true, true},
		{EmeraldSAO, 2, 2700 * time.Second, 2400 * time.Second, true, false},
		{SapphireSAO, 3, 1800 * time.Second, 1500 * time.Second, false, false},
		{OpalASO, 4, 1200 * time.Second, 900 * time.Second, false, false},
		{OnyxOS, 5, 900 * time.Second, 600 * time.Second, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			d, ok := Lookup(tt.role)
			require.True(t, ok)
			assert.Equal(t, tt.level, d.Level)
			assert.Equal(t, tt.ttl, d.AccessTokenTTL)
			assert.Equal(t, tt.refresh, d.RefreshRequiredBefore)
			assert.Equal(t, tt.stepUp, d.RequiresStepUp)
			assert.Equal(t, tt.device, d.RequiresDeviceBinding)
			assert.NotEmpty(t, d.Permissions)
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Negative(t, Compare(DiamondSAO, OnyxOS))
	assert.Positive(t, Compare(OpalASO, SapphireSAO))
	assert.Zero(t, Compare(EmeraldSAO, EmeraldSAO))
	assert.Negative(t, Compare(OnyxOS, Role("bogus")), "unknown roles sort last")
}

func TestSort_DedupesAndOrders(t *testing.T) {
	got := Sort([]Role{OnyxOS, DiamondSAO, OnyxOS, SapphireSAO})
	assert.Equal(t, []Role{DiamondSAO, SapphireSAO, OnyxOS}, got)
}

func TestPolicyFor_MostPrivilegedWins(t *testing.T) {
	// Ordering of the input must not matter.
	a := PolicyFor([]Role{OnyxOS, SapphireSAO})
	b := PolicyFor([]Role{SapphireSAO, OnyxOS})

	assert.Equal(t, a, b)
	assert.Equal(t, SapphireSAO, a.Role)
	assert.Equal(t, 1800*time.Second, a.AccessTokenTTL)
	assert.Equal(t, 1500*time.Second, a.RefreshRequiredBefore)
	assert.False(t, a.RequiresStepUp)
}

func TestPolicyFor_Empty(t *testing.T) {
	p := PolicyFor(nil)
	assert.Equal(t, DefaultPolicy(), p)
	assert.Equal(t, 900*time.Second, p.AccessTokenTTL)
	assert.False(t, p.RequiresStepUp)
	assert.Empty(t, p.StepUpRequirements())
}

func TestPolicy_StepUpRequirements(t *testing.T) {
	assert.Equal(t, []string{FactorMFA, FactorDeviceBinding}, PolicyFor([]Role{DiamondSAO}).StepUpRequirements())
	assert.Equal(t, []string{FactorMFA}, PolicyFor([]Role{EmeraldSAO, OnyxOS}).StepUpRequirements())
	assert.Empty(t, PolicyFor([]Role{SapphireSAO}).StepUpRequirements())
}

func TestExtractor(t *testing.T) {
	e, err := NewExtractor(map[string]string{
		"orders":  "onyx_os",
		"billing": "opal_aso",
	})
	require.NoError(t, err)

	t.Run("direct role scopes", func(t *testing.T) {
		got := e.ExtractRoles([]string{"openid", "onyx_os", "emerald_sao"})
		assert.Equal(t, []Role{EmeraldSAO, OnyxOS}, got)
	})

	t.Run("bound scopes", func(t *testing.T) {
		got := e.ExtractRoles([]string{"openid", "orders"})
		assert.Equal(t, []Role{OnyxOS}, got)
	})

	t.Run("both orderings agree", func(t *testing.T) {
		a := e.ExtractRoles([]string{"orders", "billing"})
		b := e.ExtractRoles([]string{"billing", "orders"})
		assert.Equal(t, a, b)
		assert.Equal(t, 1200*time.Second, PolicyFor(a).AccessTokenTTL)
	})

	t.Run("no roles", func(t *testing.T) {
		assert.Empty(t, e.ExtractRoles([]string{"openid", "profile"}))
	})

	t.Run("case sensitive scopes", func(t *testing.T) {
		assert.Empty(t, e.ExtractRoles([]string{"DIAMOND_SAO"}))
	})

	t.Run("bound scopes are sorted", func(t *testing.T) {
		many, err := NewExtractor(map[string]string{
			"reports": "opal_aso",
			"audit":   "emerald_sao",
			"orders":  "onyx_os",
			"billing": "opal_aso",
		})
		require.NoError(t, err)
		for range 10 {
			assert.Equal(t, []string{"audit", "billing", "orders", "reports"}, many.BoundScopes())
		}
	})
}

func TestNewExtractor_UnknownRole(t *testing.T) {
	_, err := NewExtractor(map[string]string{"orders": "gold"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown role "gold"`)
}

func TestFromStrings(t *testing.T) {
	got := FromStrings([]string{"onyx_os", "nope", "diamond_sao"})
	assert.Equal(t, []Role{DiamondSAO, OnyxOS}, got)
}

func TestIntersect(t *testing.T) {
	got := Intersect([]Role{DiamondSAO, OnyxOS}, []Role{OnyxOS})
	assert.Equal(t, []Role{OnyxOS}, got)
	assert.Empty(t, Intersect([]Role{DiamondSAO}, nil))
}
