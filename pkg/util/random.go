package util

import (
	"fmt"
	"math/rand"
)

// GenerateRandomNumber generates a random number between min and max (inclusive)
func GenerateRandomNumber(min, max int) int {
	return min + rand.Intn(max-min+1)
}

// GenerateOTPCode generates a 6-digit login code
func GenerateOTPCode() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}
