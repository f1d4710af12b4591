package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/fpang/instagram-relay/internal/retention"
)

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	c := Default()
	for _, b := range c.stringBindings() {
		for _, name := range b.names {
			t.Setenv(name, "")
		}
	}
	for _, p := range c.SSMParams() {
		t.Setenv(p.PathEnv, "")
	}
	t.Setenv("RETENTION_CAPACITY", "")
	t.Setenv("PORT", "")
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Webhook.RetentionCapacity != retention.DefaultCapacity {
		t.Errorf("expected retention capacity %d, got %d", retention.DefaultCapacity, c.Webhook.RetentionCapacity)
	}
	if c.Server.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, c.Server.Port)
	}
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTAGRAM_APP_ID", "app-1")
	t.Setenv("CLIENT_SECRET", "legacy-secret")
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "tok")
	t.Setenv("VERIFY_TOKEN", "ignored")
	t.Setenv("RETENTION_CAPACITY", "7")
	t.Setenv("PORT", "9090")

	c := Default()
	if err := c.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if c.Instagram.AppID != "app-1" {
		t.Errorf("expected app ID app-1, got %q", c.Instagram.AppID)
	}
	if c.Instagram.AppSecret != "legacy-secret" {
		t.Errorf("expected legacy variable to be honored, got %q", c.Instagram.AppSecret)
	}
	if c.Webhook.VerifyToken != "tok" {
		t.Errorf("expected primary variable to win, got %q", c.Webhook.VerifyToken)
	}
	if c.Webhook.RetentionCapacity != 7 {
		t.Errorf("expected retention capacity 7, got %d", c.Webhook.RetentionCapacity)
	}
	if c.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", c.Server.Port)
	}
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("RETENTION_CAPACITY", "0")
	t.Setenv("PORT", "http")

	err := Default().ApplyEnv()
	if err == nil {
		t.Fatal("expected error for invalid numeric variables")
	}
	if !strings.Contains(err.Error(), "RETENTION_CAPACITY") || !strings.Contains(err.Error(), "PORT") {
		t.Errorf("expected both variables reported, got %v", err)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	yaml := `
instagram:
  app_id: file-app
  app_secret: file-secret
  redirect_uri: https://relay.example.com/auth/instagram/callback
webhook:
  verify_token: file-token
  retention_capacity: 25
server:
  port: 8081
events:
  bus_name: relay-bus
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	t.Setenv("INSTAGRAM_APP_SECRET", "env-secret")
	if err := c.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if c.Instagram.AppID != "file-app" {
		t.Errorf("expected app ID from file, got %q", c.Instagram.AppID)
	}
	if c.Instagram.AppSecret != "env-secret" {
		t.Errorf("expected env to override file, got %q", c.Instagram.AppSecret)
	}
	if c.Webhook.RetentionCapacity != 25 {
		t.Errorf("expected retention capacity 25, got %d", c.Webhook.RetentionCapacity)
	}
	if c.Server.Port != 8081 {
		t.Errorf("expected port 8081, got %d", c.Server.Port)
	}
	if c.Events.BusName != "relay-bus" {
		t.Errorf("expected bus name relay-bus, got %q", c.Events.BusName)
	}
	if !c.OAuthConfigured() {
		t.Error("expected OAuth to be configured")
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("webhook: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadFile_InvalidNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	yaml := "webhook:\n  retention_capacity: 0\nserver:\n  port: 70000\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected error for out-of-range values")
	}
	if !strings.Contains(err.Error(), "retention_capacity") || !strings.Contains(err.Error(), "port") {
		t.Errorf("expected both fields reported, got %v", err)
	}

	clearEnv(t)
	if _, err := Load(context.Background(), path, nil); err == nil {
		t.Error("expected Load to reject the file")
	}
}

func TestWarnings(t *testing.T) {
	if w := Default().Warnings(); len(w) != 4 {
		t.Errorf("expected 4 warnings for empty config, got %d: %v", len(w), w)
	}

	c := Default()
	c.Instagram = InstagramConfig{
		AppID:       "id",
		AppSecret:   "secret",
		RedirectURI: "https://relay.example.com/cb",
		AccessToken: "token",
	}
	c.Webhook.VerifyToken = "verify"
	if w := c.Warnings(); len(w) != 0 {
		t.Errorf("expected no warnings, got %v", w)
	}
}

type fakeParams struct {
	values    map[string]string
	requested []string
	decrypted map[string]bool
}

func (f *fakeParams) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	name := aws.ToString(in.Name)
	f.requested = append(f.requested, name)
	if f.decrypted == nil {
		f.decrypted = make(map[string]bool)
	}
	f.decrypted[name] = aws.ToBool(in.WithDecryption)

	v, ok := f.values[name]
	if !ok {
		return nil, &types.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(v)}}, nil
}

func TestResolveSSM(t *testing.T) {
	clearEnv(t)
	t.Setenv("SSM_APP_SECRET_PARAM", "/custom/secret")

	c := Default()
	c.Instagram.AppID = "from-env"

	params := &fakeParams{values: map[string]string{
		"/custom/secret": "ssm-secret",
		"/instagram-relay/prod/instagram-oauth-redirect-uri":   "https://relay.example.com/cb",
		"/instagram-relay/prod/instagram-webhook-verify-token": "ssm-verify",
		"/instagram-relay/prod/instagram-access-token":         "ssm-token",
	}}

	err := c.ResolveSSM(context.Background(), params)

	// user ID is absent from the store
	if err == nil {
		t.Fatal("expected error for missing user ID parameter")
	}
	var notFound *types.ParameterNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ParameterNotFound in joined error, got %v", err)
	}

	for _, name := range params.requested {
		if name == "/instagram-relay/prod/instagram-app-id" {
			t.Error("app ID already set; SSM should not be consulted")
		}
	}
	if !params.decrypted["/custom/secret"] {
		t.Error("expected app secret to be read with decryption")
	}
	if c.Instagram.AppID != "from-env" {
		t.Errorf("expected env value kept, got %q", c.Instagram.AppID)
	}
	if c.Instagram.AppSecret != "ssm-secret" {
		t.Errorf("expected app secret from SSM, got %q", c.Instagram.AppSecret)
	}
	if c.Webhook.VerifyToken != "ssm-verify" {
		t.Errorf("expected verify token from SSM, got %q", c.Webhook.VerifyToken)
	}
	if c.Instagram.AccessToken != "ssm-token" {
		t.Errorf("expected access token from SSM, got %q", c.Instagram.AccessToken)
	}
	if c.Instagram.UserID != "" {
		t.Errorf("expected user ID to stay empty, got %q", c.Instagram.UserID)
	}
}

func TestCheckOAuth(t *testing.T) {
	c := Default()
	c.Instagram.AppID = "id"
	err := c.CheckOAuth()
	if !errors.Is(err, ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), "app secret") || !strings.Contains(err.Error(), "redirect URI") {
		t.Errorf("expected missing fields named, got %v", err)
	}
	if strings.Contains(err.Error(), "app ID") {
		t.Errorf("app ID is set and should not be reported, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte("webhook:\n  verify_token: from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INSTAGRAM_APP_ID", "env-app")

	params := &fakeParams{values: map[string]string{
		"/instagram-relay/prod/instagram-app-secret": "ssm-secret",
	}}
	c, err := Load(context.Background(), path, params)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Webhook.VerifyToken != "from-file" {
		t.Errorf("expected verify token from file, got %q", c.Webhook.VerifyToken)
	}
	if c.Instagram.AppID != "env-app" {
		t.Errorf("expected app ID from env, got %q", c.Instagram.AppID)
	}
	if c.Instagram.AppSecret != "ssm-secret" {
		t.Errorf("expected app secret from SSM, got %q", c.Instagram.AppSecret)
	}
}

func TestLoad_NoSSM(t *testing.T) {
	clearEnv(t)
	c, err := Load(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Instagram.AppSecret != "" {
		t.Errorf("expected empty secret without SSM, got %q", c.Instagram.AppSecret)
	}
}
