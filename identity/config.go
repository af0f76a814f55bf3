package identity

// Config is the configuration the identity service reads.
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetMaxLoginAttempts() int
	GetLoginCooldown() string
	GetPasswordCost() int
	GetDeterministicIDs() bool
}
