package mpesa

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Provider transaction limits in KES.
const (
	MinTransactionAmount = 1.0
	MaxTransactionAmount = 150000.0
)

var (
	nonDigits          = regexp.MustCompile(`[^0-9]`)
	kenyanMobilePattern = regexp.MustCompile(`^254(7[0-9]{8}|1[0-9]{8})$`)
)

// NormalizePhoneNumber canonicalizes a Kenyan mobile number to the
// 254XXXXXXXXX format the provider expects. Accepted inputs: already
// prefixed with 254, local 07XX/01XX, or the bare 9-digit subscriber
// number; spaces, dashes and a leading + are ignored.
func NormalizePhoneNumber(phone string) (string, error) {
	cleaned := nonDigits.ReplaceAllString(phone, "")
	if cleaned == "" {
		return "", fmt.Errorf("phone number is required")
	}

	var formatted string
	switch {
	case strings.HasPrefix(cleaned, "254"):
		formatted = cleaned
	case strings.HasPrefix(cleaned, "0"):
		formatted = "254" + cleaned[1:]
	case len(cleaned) == 9:
		formatted = "254" + cleaned
	default:
		return "", fmt.Errorf("unrecognized phone number format: %s", phone)
	}

	if !kenyanMobilePattern.MatchString(formatted) {
		return "", fmt.Errorf("invalid kenyan mobile number: %s", phone)
	}
	return formatted, nil
}

// ValidateAmount enforces the provider's transaction limits and the
// two-decimal-place constraint on KES amounts.
func ValidateAmount(amount float64) error {
	if amount < MinTransactionAmount {
		return fmt.Errorf("minimum transaction amount is KES %.2f", MinTransactionAmount)
	}
	if amount > MaxTransactionAmount {
		return fmt.Errorf("maximum transaction amount is KES %.2f", MaxTransactionAmount)
	}
	if amount*100 != math.Floor(amount*100) {
		return fmt.Errorf("amount cannot have more than 2 decimal places")
	}
	return nil
}
