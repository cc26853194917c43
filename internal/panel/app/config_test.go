package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing session secret is fatal", func(t *testing.T) {
		_, err := LoadConfig()
		require.ErrorIs(t, err, ErrMissingSessionSecret)
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("PANEL_SESSION_SECRET", "a-real-secret")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
		require.Equal(t, 72*time.Hour, cfg.InviteTTL)
		require.Equal(t, "http://localhost:3000", cfg.BaseURL)
		require.Equal(t, "panel.db", cfg.DatabaseFile)
		require.Equal(t, 8080, cfg.Port)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("PANEL_SESSION_SECRET", "a-real-secret")
		t.Setenv("PANEL_SESSION_TTL", "24h")
		t.Setenv("PANEL_INVITE_TTL", "1h")
		t.Setenv("PANEL_BASE_URL", "https://panel.example.com")
		t.Setenv("PORT", "9999")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, 24*time.Hour, cfg.SessionTTL)
		require.Equal(t, time.Hour, cfg.InviteTTL)
		require.Equal(t, "https://panel.example.com", cfg.BaseURL)
		require.Equal(t, 9999, cfg.Port)
	})
}
