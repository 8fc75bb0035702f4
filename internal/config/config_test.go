package config_test

import (
	"testing"

	"github.com/straye-as/project-access-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *config.Config {
	return &config.Config{
		Portal: config.PortalConfig{TokenLifetimeDays: 7, RenewalLeadDays: 7, RenewalPeriodDays: 30},
		Authz:  config.AuthzConfig{PolicyVersion: "scoped-v2"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		wantErr string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"zero lifetime", func(c *config.Config) { c.Portal.TokenLifetimeDays = 0 }, "tokenLifetimeDays"},
		{"zero lead", func(c *config.Config) { c.Portal.RenewalLeadDays = 0 }, "renewalLeadDays"},
		{"renewal inside lead window", func(c *config.Config) { c.Portal.RenewalPeriodDays = 7 }, "must exceed"},
		{"missing policy", func(c *config.Config) { c.Authz.PolicyVersion = "" }, "policyVersion"},
		{"unknown policy", func(c *config.Config) { c.Authz.PolicyVersion = "open-v0" }, "not one of collaborative-v1, scoped-v2"},
		{"collaborative policy", func(c *config.Config) { c.Authz.PolicyVersion = "collaborative-v1" }, ""},
		{"negative settle window", func(c *config.Config) { c.AuditExport.SettleSeconds = -1 }, "settleSeconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_DefaultsAndEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AUTHZ_POLICYVERSION", "collaborative-v1")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "collaborative-v1", cfg.Authz.PolicyVersion)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7, cfg.Portal.TokenLifetimeDays)
	assert.Equal(t, "15 * * * *", cfg.Portal.RenewalCron)
	assert.Equal(t, 300, cfg.AuditExport.SettleSeconds)
	assert.Contains(t, cfg.CORS.AllowedHeaders, "X-Portal-Token")
	assert.True(t, cfg.RateLimit.Enabled)
}
