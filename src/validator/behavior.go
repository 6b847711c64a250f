package validator

// Behavior controls how a simulated node answers requests.
type Behavior uint32

const (
	// Honest nodes answer from the state they are at.
	Honest Behavior = iota
	// Silent nodes accept requests and never answer.
	Silent
	// BadSignature nodes sign replies with a key that is not theirs.
	BadSignature
	// TamperProof nodes flip a bit in the first node of their state proofs.
	TamperProof
	// WrongResult nodes return a result that differs from the proven value.
	WrongResult
	// Unattested nodes strip the multi-signature from their replies.
	Unattested
)

func (b Behavior) String() string {
	switch b {
	case Honest:
		return "Honest"
	case Silent:
		return "Silent"
	case BadSignature:
		return "BadSignature"
	case TamperProof:
		return "TamperProof"
	case WrongResult:
		return "WrongResult"
	case Unattested:
		return "Unattested"
	default:
		return "Unknown"
	}
}
