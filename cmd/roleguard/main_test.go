package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/roleguard/pkg/roleguard"
	"github.com/code-payments/roleguard/pkg/solana"
	"github.com/code-payments/roleguard/pkg/solana/system"
	"github.com/code-payments/roleguard/pkg/testutil"
)

const testdata = "../../pkg/manifest/testdata/"

type runResult struct {
	stdout string
	stderr string
	code   int
}

func run(t *testing.T, stdin string, args ...string) runResult {
	var stdout, stderr bytes.Buffer

	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	result := runResult{}

	err := cmd.Execute()
	if err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			result.code = exit.code
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	result.stdout = stdout.String()
	result.stderr = stderr.String()
	return result
}

func TestCheck(t *testing.T) {
	result := run(t, "", "check", testdata+"multisig-payer-vulnerable.yaml", testdata+"account-griefing-vulnerable.yaml")
	assert.Equal(t, exitFailed, result.code)
	assert.Contains(t, result.stdout, "vulnerable_create_proposal: fail\n  [R1] error UnauthorizedPayer account=treasury roles=payer|authority|pda\n")
	assert.Contains(t, result.stdout, "vulnerable_create_stake: fail\n  [R2] error PredictableTargetAddress account=stake_account roles=target|pda\n")

	result = run(t, "", "check", testdata+"account-griefing-secure.yaml")
	assert.Equal(t, 0, result.code)
	assert.Contains(t, result.stdout, "secure_create_stake: pass\n")
	assert.Contains(t, result.stdout, "create_stake_if_needed: pass with warnings\n  [R2] warning ReentryGuardRequired")

	result = run(t, "", "check", "--strict", testdata+"account-griefing-secure.yaml")
	assert.Equal(t, exitFailed, result.code)
}

func TestCheck_JSON(t *testing.T) {
	result := run(t, "", "check", "--json", testdata+"multisig-payer-secure.yaml")
	assert.Equal(t, exitFailed, result.code)

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.stdout), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "initialize", decoded[0]["instruction"])
	assert.Equal(t, "fail", decoded[0]["status"])
	assert.Equal(t, "secure_create_proposal", decoded[1]["instruction"])
	assert.Equal(t, "pass", decoded[1]["status"])
}

func TestCheck_Malformed(t *testing.T) {
	path := writeFile(t, "two-payers.yaml", `
instructions:
  - name: two_payers
    accounts:
      - {name: a, roles: [payer, signer]}
      - {name: b, roles: [payer, signer]}
      - {name: c, roles: [target]}
  - name: fine
    accounts:
      - {name: a, roles: [payer, signer]}
      - {name: c, roles: [target]}
`)

	result := run(t, "", "check", path)
	assert.Equal(t, exitMalformed, result.code)
	assert.Contains(t, result.stdout, "two_payers: malformed\n  malformed roles: two_payers: multiple accounts carry the payer role")
	assert.Contains(t, result.stdout, "fine: pass\n")

	result = run(t, "", "check", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, exitMalformed, result.code)

	result = run(t, "", "check", writeFile(t, "invalid.yaml", "instructions: []\n"))
	assert.Equal(t, exitMalformed, result.code)
}

func TestCheck_SettingsFile(t *testing.T) {
	settings := writeFile(t, "roleguard.yaml", "treat_warnings_as_errors: true\nlog_level: error\n")

	result := run(t, "", "check", "--config", settings, testdata+"account-griefing-secure.yaml")
	assert.Equal(t, exitFailed, result.code)

	result = run(t, "", "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"), testdata+"account-griefing-secure.yaml")
	assert.Equal(t, exitMalformed, result.code)
}

func TestTx(t *testing.T) {
	funder, target, owner := testutil.NewRandomKey(t), testutil.NewRandomKey(t), testutil.NewRandomKey(t)

	tx := solana.NewTransaction(funder, system.CreateAccount(funder, target, owner, 1, 165))
	encoded := base64.StdEncoding.EncodeToString(tx.Marshal())

	result := run(t, "", "tx", encoded)
	assert.Equal(t, 0, result.code)
	assert.Equal(t, "create_account[0]: pass\n", result.stdout)

	result = run(t, base58.Encode(tx.Marshal())+"\n", "tx", "-")
	assert.Equal(t, 0, result.code)
	assert.Equal(t, "create_account[0]: pass\n", result.stdout)

	result = run(t, "", "tx", "not a transaction")
	assert.Equal(t, exitMalformed, result.code)
}

func TestTx_Hints(t *testing.T) {
	program, user := testutil.NewRandomKey(t), testutil.NewRandomKey(t)

	address, bump, err := solana.FindProgramAddressAndBump(program, []byte("stake"), user)
	require.NoError(t, err)

	tx := solana.NewTransaction(user, system.CreateAccount(user, address, program, 1, 64))
	encoded := base64.StdEncoding.EncodeToString(tx.Marshal())

	// Without hints the derivation is unknown
	result := run(t, "", "tx", encoded)
	assert.Equal(t, exitMalformed, result.code)
	assert.Contains(t, result.stdout, "create_account[0]: malformed")

	hints := writeFile(t, "hints.yaml", fmt.Sprintf(`
hints:
  - address: %s
    program: %s
    bump: %d
    seeds:
      - {kind: static, value: stake}
      - {kind: caller_pubkey, value: %s}
`, base58.Encode(address), base58.Encode(program), bump, base58.Encode(user)))

	result = run(t, "", "tx", "--hints", hints, encoded)
	assert.Equal(t, exitFailed, result.code)
	assert.Contains(t, result.stdout, "create_account[0]: fail\n  [R2] error PredictableTargetAddress account=new_account roles=target|pda\n")
}

func TestDerive(t *testing.T) {
	program, user := testutil.NewRandomKey(t), testutil.NewRandomKey(t)

	nonce := roleguard.CallerSuppliedNonce(847291, false)
	address, bump, err := solana.FindProgramAddressAndBump(program, []byte("stake"), user, nonce.Value)
	require.NoError(t, err)

	args := []string{
		"derive",
		"--program", base58.Encode(program),
		"--seed", "static:stake",
		"--seed", "pubkey:" + base58.Encode(user),
		"--seed", "nonce:847291",
	}

	result := run(t, "", args...)
	assert.Equal(t, 0, result.code)
	assert.Contains(t, result.stdout, fmt.Sprintf("address: %s\nbump: %d\npredictable: true\n", base58.Encode(address), bump))

	result = run(t, "", append(args, "--unobservable")...)
	assert.Equal(t, 0, result.code)
	assert.Contains(t, result.stdout, "predictable: false\n")

	result = run(t, "", "derive", "--program", "abc", "--seed", "static:stake")
	assert.Equal(t, exitMalformed, result.code)

	result = run(t, "", "derive", "--program", base58.Encode(program), "--seed", "stake")
	assert.Equal(t, exitMalformed, result.code)

	result = run(t, "", "derive", "--program", base58.Encode(program), "--seed", "nonce:")
	assert.Equal(t, exitMalformed, result.code)
}

func writeFile(t *testing.T, name, contents string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}
