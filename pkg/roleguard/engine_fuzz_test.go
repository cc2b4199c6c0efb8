package roleguard

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FuzzValidate decodes arbitrary bytes into a role declaration and checks the
// engine's properties hold for every well formed declaration.
//
// Layout: [flags][seedCount][seed kinds...]
//
//	flags bit 0: payer is a signer
//	flags bit 1: payer is program derived
//	flags bit 2: target is program derived
//	flags bit 3: reentry allowed
//	flags bit 4: duplicate payer
//
// Each seed byte selects the kind (low two bits) and whether a nonce is
// unobservable (bit 2).
func FuzzValidate(f *testing.F) {
	f.Add([]byte{0b00010, 0})              // PDA payer
	f.Add([]byte{0b00001, 0})              // signer payer, plain target
	f.Add([]byte{0b00101, 2, 0, 1})        // static + caller key
	f.Add([]byte{0b00101, 3, 0, 1, 2 | 4}) // static + caller key + hidden nonce
	f.Add([]byte{0b01101, 2, 0, 1})        // reentry allowed
	f.Add([]byte{0b10001, 0})              // two payers
	f.Add([]byte{0b00101, 0})              // derived target without seeds
	f.Add([]byte{0b00100, 4, 3, 2, 1, 0})  // everything predictable, unsigned payer
	f.Add([]byte{0b01110, 1, 2 | 4})       // unsigned derived payer, hidden nonce, reentry
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) < 2 {
			return
		}

		flags := data[0]
		payerSigns := flags&1 != 0
		payerDerived := flags&2 != 0
		targetDerived := flags&4 != 0
		reentry := flags&8 != 0
		duplicatePayer := flags&16 != 0

		seedCount := int(data[1]) % 8
		if len(data)-2 < seedCount {
			seedCount = len(data) - 2
		}

		var seeds []SeedComponent
		anyUnpredictable := false
		for _, b := range data[2 : 2+seedCount] {
			seed := SeedComponent{
				Kind:         SeedKind(b & 3),
				Value:        []byte{b},
				Unobservable: b&4 != 0,
			}
			if !seed.PredictableByThirdParty() {
				anyUnpredictable = true
			}
			seeds = append(seeds, seed)
		}

		accounts := []AccountDescriptor{
			{
				Name:             "payer",
				Roles:            NewRoleSet(RolePayer),
				IsSigner:         payerSigns,
				IsProgramDerived: payerDerived,
			},
			{
				Name:             "target",
				Roles:            NewRoleSet(RoleTarget),
				IsProgramDerived: targetDerived,
				Seeds:            seeds,
			},
		}
		if duplicatePayer {
			accounts = append(accounts, AccountDescriptor{Name: "payer2", Roles: NewRoleSet(RolePayer), IsSigner: true})
		}

		ix, err := Construct(&Roles{Accounts: accounts, AllowReentryIfPreexisting: reentry})
		if duplicatePayer || (targetDerived && len(seeds) == 0) {
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformedRoles))
			return
		}
		require.NoError(t, err)

		verdict := Validate(ix)

		// Idempotent and order stable
		assert.Equal(t, verdict, Validate(ix))

		// R1 depends only on whether the payer signed
		assert.Equal(t, !payerSigns, verdict.Has(UnauthorizedPayer))

		// R2
		switch {
		case !targetDerived:
			assert.False(t, verdict.Has(PredictableTargetAddress))
			assert.False(t, verdict.HasAdvisory(ReentryGuardRequired))
		case anyUnpredictable:
			assert.False(t, verdict.Has(PredictableTargetAddress))
		case reentry:
			assert.False(t, verdict.Has(PredictableTargetAddress))
			assert.True(t, verdict.HasAdvisory(ReentryGuardRequired))
		default:
			assert.True(t, verdict.Has(PredictableTargetAddress))
		}

		// R1 findings always precede R2 findings
		for i := 1; i < len(verdict.Violations); i++ {
			assert.LessOrEqual(t, string(verdict.Violations[i-1].Rule), string(verdict.Violations[i].Rule))
		}

		// The reporter never invents or drops findings
		diagnostic := Report(verdict)
		assert.Len(t, diagnostic.Findings, len(verdict.Violations)+len(verdict.Advisories))
		assert.Equal(t, verdict.Status(), diagnostic.Status)
	})
}
