// Package cpf validates and formats Brazilian CPF document numbers.
package cpf

import "strings"

// Designated test documents that bypass check-digit validation in
// development and staging so the team can log in without a real CPF.
var bypassValues = map[string]bool{
	"00000000001": true,
	"00000000002": true,
}

// Clean strips everything but digits.
func Clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format renders a digit string as 000.000.000-00, as far as the available
// digits allow.
func Format(s string) string {
	cleaned := Clean(s)
	if len(cleaned) > 11 {
		return s
	}
	out := cleaned
	if len(cleaned) > 9 {
		out = cleaned[:3] + "." + cleaned[3:6] + "." + cleaned[6:9] + "-" + cleaned[9:]
	} else if len(cleaned) > 6 {
		out = cleaned[:3] + "." + cleaned[3:6] + "." + cleaned[6:]
	} else if len(cleaned) > 3 {
		out = cleaned[:3] + "." + cleaned[3:]
	}
	return out
}

// ShouldSkipValidation reports whether the given CPF is one of the
// designated bypass values and the environment allows the bypass.
func ShouldSkipValidation(s, environment string) bool {
	devOrStaging := environment == "development" || environment == "staging"
	return devOrStaging && bypassValues[Clean(s)]
}

// Valid runs the full check-digit validation, honoring the environment
// bypass. Production never bypasses.
func Valid(s, environment string) bool {
	if ShouldSkipValidation(s, environment) {
		return true
	}

	cleaned := Clean(s)
	if len(cleaned) != 11 {
		return false
	}

	// All-equal digits pass the check-digit math but are not real CPFs.
	allEqual := true
	for i := 1; i < len(cleaned); i++ {
		if cleaned[i] != cleaned[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(cleaned[i]-'0') * (10 - i)
	}
	remainder := (sum * 10) % 11
	if remainder == 10 || remainder == 11 {
		remainder = 0
	}
	if remainder != int(cleaned[9]-'0') {
		return false
	}

	sum = 0
	for i := 0; i < 10; i++ {
		sum += int(cleaned[i]-'0') * (11 - i)
	}
	remainder = (sum * 10) % 11
	if remainder == 10 || remainder == 11 {
		remainder = 0
	}
	return remainder == int(cleaned[10]-'0')
}
