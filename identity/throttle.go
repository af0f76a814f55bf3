package identity

import "time"

// MaxLoginAttempts is the number of failed sign-ins allowed per cooldown
// window.
var MaxLoginAttempts = 5

// CoolDownPeriod is the window failed sign-ins are counted in.
var CoolDownPeriod = "24h"

// IsWithinThresholdPeriod checks if t happened less than pattern ago.
func IsWithinThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}
	return t.After(now.Add(-duration)), nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod.
func IsOutsideThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(now, t, pattern)
	if err != nil {
		return false, err
	}
	return !valid, nil
}

// throttled reports whether account must cool down, resetting a counter
// whose window has passed.
func throttled(account *Account, now time.Time, maxAttempts int, cooldown string) (bool, error) {
	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(now, *account.LoginAttemptAt, cooldown)
		if err != nil {
			return false, err
		}
		if expired {
			account.LoginAttempts = 0
		}
	}
	return maxAttempts > 0 && account.LoginAttempts >= maxAttempts, nil
}
