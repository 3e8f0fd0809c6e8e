package config

import (
	"strings"
	"testing"
	"time"
)

const minimal = `
environment: production
shared_secret: s3cret
provider:
  api_key: sk-test
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.MaxSessions != 20 || cfg.PreConnectFrames != 500 {
		t.Errorf("limits = %d/%d", cfg.MaxSessions, cfg.PreConnectFrames)
	}
	if cfg.Provider.Variant != "realtime" {
		t.Errorf("variant = %q", cfg.Provider.Variant)
	}
	if cfg.Provider.ConnectTimeout != 10*time.Second {
		t.Errorf("connect timeout = %v", cfg.Provider.ConnectTimeout)
	}
}

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
listen: ":9000"
environment: staging
shared_secret: s3cret
max_sessions: 5
pre_connect_frames: 100
provider:
  variant: evi
  api_key: hume-key
  model: cfg-123
  instructions: Be kind.
  connect_timeout: 5s
  turn_detection:
    threshold: 0.4
    silence_duration: 500ms
actions:
  portal_url: https://portal.example.com
  customers:
    - phone: "+15550100"
      id: cust-1
      name: Dana Alvarez
      requirements:
        - code: POA
          description: Proof of address
          due_date: "2026-09-01"
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Provider.Variant != "evi" || cfg.Provider.Model != "cfg-123" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Provider.TurnDetection.SilenceDuration != 500*time.Millisecond {
		t.Errorf("silence duration = %v", cfg.Provider.TurnDetection.SilenceDuration)
	}
	if len(cfg.Actions.Customers) != 1 || cfg.Actions.Customers[0].Requirements[0].Code != "POA" {
		t.Errorf("customers = %+v", cfg.Actions.Customers)
	}

	pc := cfg.ProviderConfig()
	if pc.APIKey != "hume-key" || pc.ConnectTimeout != 5*time.Second {
		t.Errorf("provider config = %+v", pc)
	}
}

func TestValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing secret", "environment: production\nprovider:\n  api_key: k\n", "shared_secret"},
		{"missing environment", "shared_secret: s\nprovider:\n  api_key: k\n", "environment"},
		{"missing api key", "environment: production\nshared_secret: s\n", "api_key"},
		{"bad variant", minimal + "  variant: hybrid\n", "variant"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("err = %v, want mention of %q", err, c.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VOICEBRIDGE_SHARED_SECRET", "from-env")
	t.Setenv("VOICEBRIDGE_PROVIDER_API_KEY", "key-from-env")
	t.Setenv("VOICEBRIDGE_LISTEN", ":7000")

	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.SharedSecret != "from-env" {
		t.Errorf("shared secret = %q", cfg.SharedSecret)
	}
	if cfg.Provider.APIKey != "key-from-env" {
		t.Errorf("api key = %q", cfg.Provider.APIKey)
	}
	if cfg.Listen != ":7000" {
		t.Errorf("listen = %q", cfg.Listen)
	}
}
