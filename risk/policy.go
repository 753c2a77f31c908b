package risk

// Policy holds the account-level limits the validator and breaker enforce.
type Policy struct {
	// Circuit breaker
	MaxDrawdownFraction    float64 // 0.10: trip when equity < balance*(1-f)
	CriticalMarginLevel    float64 // 150
	CooldownCycles         int     // 6
	ExtendCooldownOnBreach bool    // re-arm instead of re-tripping

	// Validator
	WarnMarginLevel float64 // 200
	MinFreeMargin   float64 // 100
}

func DefaultPolicy() Policy {
	return Policy{
		MaxDrawdownFraction:    0.10,
		CriticalMarginLevel:    150,
		CooldownCycles:         6,
		ExtendCooldownOnBreach: true,
		WarnMarginLevel:        200,
		MinFreeMargin:          100,
	}
}
