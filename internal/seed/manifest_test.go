// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package seed_test

import (
	"strings"
	"testing"

	"github.com/gatehouse/gatehouse/internal/seed"
)

func TestGenerateSchema(t *testing.T) {
	data, err := seed.GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}

	schema := string(data)
	for _, want := range []string{
		seed.SchemaID,
		`"users"`,
		`"required"`,
		`"minLength"`,
		`"email"`,
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("GenerateSchema() output missing %q", want)
		}
	}
}

func TestValidate_ValidManifest(t *testing.T) {
	yaml := `
users:
  - name: Alice Example
    email: alice@example.com
    password: s3cret-pass
  - name: Bob Example
    email: bob@example.com
    password: hunter22
`
	if err := seed.Validate([]byte(yaml)); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_Empty(t *testing.T) {
	if err := seed.Validate(nil); err == nil {
		t.Error("Validate() expected error for empty manifest")
	}
}

func TestValidate_InvalidYAML(t *testing.T) {
	if err := seed.Validate([]byte("users: [unclosed")); err == nil {
		t.Error("Validate() expected error for malformed YAML")
	}
}

func TestValidate_MissingUsers(t *testing.T) {
	yaml := `
accounts:
  - name: Alice
`
	if err := seed.Validate([]byte(yaml)); err == nil {
		t.Error("Validate() expected error when users is missing")
	}
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "missing name",
			yaml: `
users:
  - email: alice@example.com
    password: s3cret-pass
`,
		},
		{
			name: "missing email",
			yaml: `
users:
  - name: Alice Example
    password: s3cret-pass
`,
		},
		{
			name: "missing password",
			yaml: `
users:
  - name: Alice Example
    email: alice@example.com
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := seed.Validate([]byte(tt.yaml)); err == nil {
				t.Errorf("Validate() expected error for %s", tt.name)
			}
		})
	}
}

func TestValidate_PasswordTooShort(t *testing.T) {
	yaml := `
users:
  - name: Alice Example
    email: alice@example.com
    password: short
`
	if err := seed.Validate([]byte(yaml)); err == nil {
		t.Error("Validate() expected error for password under 6 characters")
	}
}

func TestValidate_NameTooShort(t *testing.T) {
	yaml := `
users:
  - name: A
    email: alice@example.com
    password: s3cret-pass
`
	if err := seed.Validate([]byte(yaml)); err == nil {
		t.Error("Validate() expected error for single-character name")
	}
}

func TestParse_RoundTrip(t *testing.T) {
	yaml := `
users:
  - name: Alice Example
    email: alice@example.com
    password: s3cret-pass
`
	m, err := seed.Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(m.Users) != 1 {
		t.Fatalf("Parse() got %d users, want 1", len(m.Users))
	}
	u := m.Users[0]
	if u.Name != "Alice Example" || u.Email != "alice@example.com" || u.Password != "s3cret-pass" {
		t.Errorf("Parse() unexpected user: %+v", u)
	}
}

func TestParse_InvalidManifest(t *testing.T) {
	if _, err := seed.Parse([]byte("users: {}")); err == nil {
		t.Error("Parse() expected error for users that is not a list")
	}
}
