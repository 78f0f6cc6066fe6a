package swrcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConfig_SetDefaultsFillsZeroValues(t *testing.T) {
	t.Parallel()
	var cfg GlobalConfig
	cfg.SetDefaults()

	assert.NotNil(t, cfg.Serializer)
	assert.Equal(t, 24*time.Hour, cfg.DefaultHardTTL)
	assert.Equal(t, 5*time.Minute, cfg.DefaultSoftTTL)
	assert.Equal(t, 5*time.Minute, cfg.KeyLockEvictionWindow)
}

func TestGlobalConfig_SetDefaultsPreservesExplicitValues(t *testing.T) {
	t.Parallel()
	cfg := GlobalConfig{
		DefaultHardTTL:        time.Hour,
		DefaultSoftTTL:        time.Minute,
		KeyLockEvictionWindow: 10 * time.Second,
	}
	cfg.SetDefaults()

	assert.Equal(t, time.Hour, cfg.DefaultHardTTL)
	assert.Equal(t, time.Minute, cfg.DefaultSoftTTL)
	assert.Equal(t, 10*time.Second, cfg.KeyLockEvictionWindow)
}

func TestGlobalConfig_SetDefaultsClampsJitterFraction(t *testing.T) {
	t.Parallel()
	cfg := GlobalConfig{ExpirationJitterFraction: 5.0}
	cfg.SetDefaults()
	assert.LessOrEqual(t, cfg.ExpirationJitterFraction, 0.9)
}

func TestPolicy_NilPolicyFallsThroughToGlobalConfig(t *testing.T) {
	t.Parallel()
	cfg := &GlobalConfig{DefaultSoftTTL: time.Minute, DefaultHardTTL: time.Hour}
	var p *Policy

	assert.Equal(t, time.Minute, p.softTTL(cfg))
	assert.Equal(t, time.Hour, p.hardTTL(cfg))
	assert.Equal(t, time.Duration(0), p.earlyRefreshWindow())
	assert.False(t, p.skipCachingNullOrDefault(cfg))
}

func TestPolicy_ExplicitFieldsOverrideGlobalConfig(t *testing.T) {
	t.Parallel()
	cfg := &GlobalConfig{DefaultSoftTTL: time.Minute, DefaultHardTTL: time.Hour}
	soft := 30 * time.Second
	skip := true
	p := &Policy{SoftTTL: &soft, SkipCachingNullOrDefault: &skip}

	assert.Equal(t, 30*time.Second, p.softTTL(cfg))
	assert.Equal(t, time.Hour, p.hardTTL(cfg), "unset fields still fall through")
	assert.True(t, p.skipCachingNullOrDefault(cfg))
}

func TestPolicy_JitterFractionIsClamped(t *testing.T) {
	t.Parallel()
	cfg := &GlobalConfig{ExpirationJitterFraction: 0.1}
	over := 3.0
	p := &Policy{ExpirationJitterFraction: &over}

	assert.LessOrEqual(t, p.jitterFraction(cfg), 0.9)
}

func TestEffectiveKey_EmptyPrefixIsNoOp(t *testing.T) {
	t.Parallel()
	cfg := &GlobalConfig{KeyPrefix: "  "}
	assert.Equal(t, "k", effectiveKey(cfg, "k"))
}

func TestEffectiveKey_AppliesConfiguredPrefix(t *testing.T) {
	t.Parallel()
	cfg := &GlobalConfig{KeyPrefix: "app:"}
	assert.Equal(t, "app:k", effectiveKey(cfg, "k"))
}

func TestWithMaxConcurrentRefreshes_IgnoresNonPositive(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t, WithMaxConcurrentRefreshes(0))
	assert.Greater(t, eng.maxConcurrentRefreshes, 0)
}

func TestWithRefreshTimeout_IgnoresNonPositive(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t, WithRefreshTimeout(0))
	require.NotNil(t, eng)
	assert.Equal(t, 30*time.Second, eng.refreshTimeout)
}

func TestWithSerializer_NilIsIgnored(t *testing.T) {
	t.Parallel()
	eng, _ := newTestEngine(t, WithSerializer(nil))
	assert.NotNil(t, eng.serializer)
}
