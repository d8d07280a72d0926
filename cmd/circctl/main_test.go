// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package main

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/circulation/internal/app"
	"github.com/tomtom215/circulation/internal/auth"
	"github.com/tomtom215/circulation/internal/bookshelf"
	"github.com/tomtom215/circulation/internal/circulation"
	"github.com/tomtom215/circulation/internal/config"
	"github.com/tomtom215/circulation/internal/models"
)

const testSecret = "circctl-test-secret-0123456789"

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Logging.Level = "error"
	cfg.Overdrive.ClientKey = "client-key-plaintext"
	cfg.Overdrive.ClientSecret = "client-secret-plaintext"
	cfg.Security.JWTSecret = testSecret
	return cfg
}

// run executes args against c and returns everything it printed.
func run(t *testing.T, c *cli, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(c)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func staticCLI(cfg *config.Config) *cli {
	c := newCLI()
	c.loadConfig = func() (*config.Config, error) { return cfg, nil }
	c.newApp = func(context.Context, *config.Config) (*app.App, error) {
		return nil, errors.New("no app in this test")
	}
	c.stdin = strings.NewReader("")
	return c
}

func TestConfigCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    string
		notWant string
	}{
		{"redacted", []string{"config"}, "****...text", "client-key-plaintext"},
		{"show secrets", []string{"config", "--show-secrets"}, "client-key-plaintext", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, staticCLI(testConfig()), tt.args...)
			if err != nil {
				t.Fatalf("config: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
			if tt.notWant != "" && strings.Contains(out, tt.notWant) {
				t.Errorf("output contains %q:\n%s", tt.notWant, out)
			}
		})
	}
}

func TestTokenCmd(t *testing.T) {
	out, err := run(t, staticCLI(testConfig()), "token", "--subject", "42", "--role", "patron", "--ttl", "5m")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	verifier, err := auth.NewJWTVerifier(&config.SecurityConfig{JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	subject, err := verifier.Verify(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject.ID != "42" || !subject.HasRole(auth.RolePatron) {
		t.Errorf("subject = %+v", subject)
	}
}

func TestTokenCmd_Rejected(t *testing.T) {
	noSecret := testConfig()
	noSecret.Security.JWTSecret = ""

	tests := []struct {
		name string
		cfg  *config.Config
		args []string
	}{
		{"missing subject", testConfig(), []string{"token"}},
		{"unknown role", testConfig(), []string{"token", "--subject", "x", "--role", "root"}},
		{"patron subject not an id", testConfig(), []string{"token", "--subject", "alice", "--role", "patron"}},
		{"no secret", noSecret, []string{"token", "--subject", "ops"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, staticCLI(tt.cfg), tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

// activity is a fixed vendor snapshot.
type activity struct {
	loans  []circulation.LoanInfo
	gotPIN string
}

func (a *activity) PatronActivity(_ context.Context, _ *models.Patron, pin string) ([]circulation.LoanInfo, []circulation.HoldInfo, error) {
	a.gotPIN = pin
	return a.loans, []circulation.HoldInfo{}, nil
}

func TestSyncCmd(t *testing.T) {
	store := models.NewMemoryStore()
	lib := store.AddLibrary(models.Library{ShortName: "MAIN"})
	patron := store.AddPatron(models.Patron{LibraryID: lib.ID, AuthorizationIdentifier: "2345"})
	coll := store.AddCollection(models.Collection{Name: "Overdrive", DataSource: models.DataSourceOverdrive})

	end := time.Now().Add(14 * 24 * time.Hour)
	source := &activity{loans: []circulation.LoanInfo{{
		CollectionID:   coll.ID,
		DataSource:     models.DataSourceOverdrive,
		IdentifierType: models.IdentifierTypeOverdrive,
		Identifier:     "title-1",
		End:            &end,
	}}}

	c := staticCLI(testConfig())
	c.stdin = strings.NewReader("9999\n")
	c.newApp = func(context.Context, *config.Config) (*app.App, error) {
		return &app.App{
			Store:      store,
			Collection: coll,
			Shelf: bookshelf.New(store, source, bookshelf.Scope{
				DataSource:    models.DataSourceOverdrive,
				CollectionIDs: []int64{coll.ID},
			}),
		}, nil
	}

	out, err := run(t, c, "sync", strconv.FormatInt(patron.ID, 10), "--pin-stdin")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if source.gotPIN != "9999" {
		t.Errorf("pin = %q, want 9999", source.gotPIN)
	}

	var result bookshelf.Result
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if result.Loans.Created != 1 {
		t.Errorf("loans created = %d, want 1", result.Loans.Created)
	}
	loans, err := store.ListLoans(context.Background(), patron.ID)
	if err != nil || len(loans) != 1 {
		t.Errorf("ListLoans = %v, %v; want one loan", loans, err)
	}
}

func TestIDArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"sync non-numeric", []string{"sync", "abc"}},
		{"sync zero", []string{"sync", "0"}},
		{"sync missing", []string{"sync"}},
		{"pool negative", []string{"availability", "pool", "-3"}},
		{"title missing", []string{"availability", "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, staticCLI(testConfig()), tt.args...); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("17", "pool"); err != nil || id != 17 {
		t.Errorf("parseID(17) = %d, %v", id, err)
	}
	if _, err := parseID("x", "pool"); !errors.Is(err, errInvalidID) {
		t.Errorf("parseID(x) error = %v, want errInvalidID", err)
	}
}
