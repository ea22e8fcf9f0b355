package config

import (
	"os"
	"strconv"
)

// Policy carries the bonus amounts and pricing consumed by the balance
// engine and registration flow. Values are in minor currency units. It is
// built once at startup and injected, so tests can vary amounts without
// touching core logic.
type Policy struct {
	WelcomeBonus   int64
	ReferralBonus  int64 // credited to the referee at registration
	ReferrerBonus  int64 // credited to the referrer
	TokenPrice     int64
	CASMaxRetries  int
	CodeMaxRetries int
}

func LoadPolicy() *Policy {
	return &Policy{
		WelcomeBonus:   getEnvAsInt64("WELCOME_BONUS", 50),
		ReferralBonus:  getEnvAsInt64("REFERRAL_BONUS", 20),
		ReferrerBonus:  getEnvAsInt64("REFERRER_BONUS", 50),
		TokenPrice:     getEnvAsInt64("TOKEN_PRICE", 5),
		CASMaxRetries:  getEnvAsInt("BALANCE_CAS_MAX_RETRIES", 5),
		CodeMaxRetries: getEnvAsInt("REFERRAL_CODE_MAX_RETRIES", 3),
	}
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}
