package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadFromEnv_Listener(t *testing.T) {
	t.Setenv("INSITU_BIND", "127.0.0.1")
	t.Setenv("INSITU_PORT", "8080")
	t.Setenv("INSITU_MAX_SESSIONS", "32")
	t.Setenv("INSITU_REUSE_PORT", "yes")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("BindAddress = %q", cfg.BindAddress)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxSessions != 32 {
		t.Errorf("MaxSessions = %d, want 32", cfg.MaxSessions)
	}
	if !cfg.ReusePort {
		t.Error("ReusePort should be true")
	}
}

func TestLoadFromEnv_Booleans(t *testing.T) {
	tests := []struct {
		key    string
		values []string
		get    func(*Config) bool
	}{
		{"INSITU_REUSE_PORT", []string{"1", "true", "yes", "TRUE", "Yes"}, func(c *Config) bool { return c.ReusePort }},
		{"INSITU_SSH_AGENT", []string{"1", "true"}, func(c *Config) bool { return c.UseSSHAgent }},
		{"INSITU_STRICT_HOSTKEY", []string{"true"}, func(c *Config) bool { return c.StrictHostKey }},
		{"INSITU_SSH_PASSWORD", []string{"1"}, func(c *Config) bool { return c.SSHPassword }},
	}

	for _, tt := range tests {
		for _, v := range tt.values {
			t.Run(tt.key+"="+v, func(t *testing.T) {
				t.Setenv(tt.key, v)
				cfg := &Config{}
				LoadFromEnv(cfg)
				if !tt.get(cfg) {
					t.Errorf("%s=%s should enable the option", tt.key, v)
				}
			})
		}
	}
}

func TestLoadFromEnv_Timeouts(t *testing.T) {
	t.Setenv("INSITU_READ_TIMEOUT", "10")
	t.Setenv("INSITU_CONNECT_TIMEOUT", "3")
	t.Setenv("INSITU_WRITE_TIMEOUT", "7")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v, want 10s", cfg.ReadTimeout)
	}
	if cfg.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v, want 3s", cfg.ConnectTimeout)
	}
	if cfg.WriteTimeout != 7*time.Second {
		t.Errorf("WriteTimeout = %v, want 7s", cfg.WriteTimeout)
	}
}

func TestLoadFromEnv_SSHFields(t *testing.T) {
	t.Setenv("INSITU_TUNNEL", "admin@bastion:2222")
	t.Setenv("INSITU_SSH_KEY", "/home/user/.ssh/id_rsa")
	t.Setenv("INSITU_KNOWN_HOSTS", "/custom/known_hosts")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.TunnelSpec != "admin@bastion:2222" {
		t.Errorf("TunnelSpec = %q", cfg.TunnelSpec)
	}
	if cfg.SSHKeyPath != "/home/user/.ssh/id_rsa" {
		t.Errorf("SSHKeyPath = %q", cfg.SSHKeyPath)
	}
	if cfg.KnownHostsPath != "/custom/known_hosts" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}
}

func TestLoadFromEnv_ProbeAndOutput(t *testing.T) {
	t.Setenv("INSITU_PROBE", "insitu.example.com:9999")
	t.Setenv("INSITU_VERBOSE", "3")
	t.Setenv("INSITU_LOG_FILE", "/var/log/insitu.log")

	cfg := &Config{}
	LoadFromEnv(cfg)

	if cfg.ProbeTarget != "insitu.example.com:9999" {
		t.Errorf("ProbeTarget = %q", cfg.ProbeTarget)
	}
	if cfg.Verbose != 3 {
		t.Errorf("Verbose = %d, want 3", cfg.Verbose)
	}
	if cfg.LogFile != "/var/log/insitu.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestLoadFromEnv_NoOverrideWhenEmpty(t *testing.T) {
	// Ensure no INSITU_ vars are set.
	os.Clearenv()

	cfg := &Config{BindAddress: "10.0.0.1", Port: 1234}
	LoadFromEnv(cfg)

	if cfg.BindAddress != "10.0.0.1" {
		t.Errorf("BindAddress was overridden: %q", cfg.BindAddress)
	}
	if cfg.Port != 1234 {
		t.Errorf("Port was overridden: %d", cfg.Port)
	}
}

func TestLoadFromEnv_InvalidIntIgnored(t *testing.T) {
	t.Setenv("INSITU_PORT", "not-a-number")
	cfg := &Config{}
	LoadFromEnv(cfg)
	if cfg.Port != 0 {
		t.Errorf("Port should be 0 for invalid input, got %d", cfg.Port)
	}
}
