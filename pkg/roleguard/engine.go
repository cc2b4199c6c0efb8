package roleguard

// Rule identifies one of the safety rules checked by the engine
type Rule string

const (
	// RuleSignerPayer requires the payer of a new account to be a transaction
	// signer. A program derived address can only sign invocations of its own
	// deriving program, and a funding transfer is never one of those.
	RuleSignerPayer Rule = "R1"

	// RuleAddressPredictability requires a program derived target to have an
	// unpredictable seed, or the creation path to tolerate a pre-existing
	// account at the target address.
	RuleAddressPredictability Rule = "R2"
)

func (r Rule) Name() string {
	switch r {
	case RuleSignerPayer:
		return "SignerPayer"
	case RuleAddressPredictability:
		return "AddressPredictability"
	default:
		return string(r)
	}
}

type ViolationKind string

const (
	UnauthorizedPayer        ViolationKind = "UnauthorizedPayer"
	PredictableTargetAddress ViolationKind = "PredictableTargetAddress"
)

type AdvisoryKind string

const (
	ReentryGuardRequired AdvisoryKind = "ReentryGuardRequired"
)

// Violation is a blocking finding against a role declaration
type Violation struct {
	Kind    ViolationKind
	Rule    Rule
	Account string
	Roles   RoleSet
}

// Advisory is a non-blocking finding. It records an obligation on the handler
// processing the instruction rather than on the role declaration.
type Advisory struct {
	Kind    AdvisoryKind
	Rule    Rule
	Account string
	Roles   RoleSet
}

// Verdict is the result of validating a CreationInstruction. An empty
// Violations list is a pass.
type Verdict struct {
	Instruction string
	Violations  []Violation
	Advisories  []Advisory
}

func (v *Verdict) Passed() bool {
	return len(v.Violations) == 0
}

func (v *Verdict) HasWarnings() bool {
	return len(v.Advisories) > 0
}

// Has reports whether the verdict contains a violation of the provided kind
func (v *Verdict) Has(kind ViolationKind) bool {
	for _, violation := range v.Violations {
		if violation.Kind == kind {
			return true
		}
	}
	return false
}

// HasAdvisory reports whether the verdict contains an advisory of the provided
// kind
func (v *Verdict) HasAdvisory(kind AdvisoryKind) bool {
	for _, advisory := range v.Advisories {
		if advisory.Kind == kind {
			return true
		}
	}
	return false
}

// RuleFunc evaluates a single rule and appends its findings to the verdict
type RuleFunc func(ix *CreationInstruction, v *Verdict)

// Engine evaluates an ordered list of rules. Rules run in list order and
// findings are appended in that order, so identical input always produces an
// identical verdict.
type Engine struct {
	rules []RuleFunc
}

func NewEngine(rules ...RuleFunc) *Engine {
	return &Engine{
		rules: rules,
	}
}

var defaultEngine = NewEngine(
	CheckSignerPayer,
	CheckAddressPredictability,
)

// Validate runs R1 then R2 against the instruction
func Validate(ix *CreationInstruction) *Verdict {
	return defaultEngine.Validate(ix)
}

// Validate is total: a nil instruction yields an empty verdict. The instruction
// is never modified.
func (e *Engine) Validate(ix *CreationInstruction) *Verdict {
	v := &Verdict{}
	if ix == nil {
		return v
	}

	v.Instruction = ix.name
	for _, rule := range e.rules {
		rule(ix, v)
	}
	return v
}

// CheckSignerPayer implements R1. Whether the payer signed is the only thing
// that matters.
func CheckSignerPayer(ix *CreationInstruction, v *Verdict) {
	if ix.payer.IsSigner {
		return
	}

	v.Violations = append(v.Violations, Violation{
		Kind:    UnauthorizedPayer,
		Rule:    RuleSignerPayer,
		Account: ix.payer.Label(),
		Roles:   ix.payer.Roles,
	})
}

// CheckAddressPredictability implements R2. It only applies to program derived
// targets.
func CheckAddressPredictability(ix *CreationInstruction, v *Verdict) {
	target := ix.target
	if !target.IsProgramDerived {
		return
	}

	// Tolerating a pre-existing target defuses pre-funding whatever the seeds
	// are, but the handler must then skip re-initialization.
	if ix.allowReentryIfPreexisting {
		v.Advisories = append(v.Advisories, Advisory{
			Kind:    ReentryGuardRequired,
			Rule:    RuleAddressPredictability,
			Account: target.Label(),
			Roles:   target.Roles,
		})
		return
	}

	for _, seed := range target.Seeds {
		if !seed.PredictableByThirdParty() {
			return
		}
	}

	v.Violations = append(v.Violations, Violation{
		Kind:    PredictableTargetAddress,
		Rule:    RuleAddressPredictability,
		Account: target.Label(),
		Roles:   target.Roles,
	})
}
